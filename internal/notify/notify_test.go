package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/events"
	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []Notification
	err   error
	delay time.Duration
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, n Notification) error {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.err
}

type fakeUsers map[int64]*model.User

func (f fakeUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return f[id], nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestAsync_FailureIsSwallowedAndCounted(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	inner := &recordingDispatcher{err: errors.New("telegram down")}
	async := NewAsync(inner, "telegram", time.Second, reg, zap.NewNop())

	err := async.Dispatch(context.Background(), Notification{
		Kind:      model.EventMeetingBooked,
		Recipient: &model.User{ID: 1},
	})
	if err != nil {
		t.Fatalf("expected nil error from async dispatch, got %v", err)
	}

	async.Wait()

	if got := testutil.ToFloat64(reg.NotificationsTotal.WithLabelValues("telegram", "failed")); got != 1 {
		t.Errorf("failed notifications = %v, want 1", got)
	}
}

func TestAsync_SurvivesCanceledRequestContext(t *testing.T) {
	inner := &recordingDispatcher{delay: 20 * time.Millisecond}
	async := NewAsync(inner, "telegram", time.Second, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	_ = async.Dispatch(ctx, Notification{Recipient: &model.User{ID: 1}})
	cancel()

	async.Wait()

	if len(inner.sent) != 1 {
		t.Fatalf("expected delivery after request context canceled, got %d", len(inner.sent))
	}
}

func TestAsync_Timeout(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	inner := &recordingDispatcher{delay: time.Second}
	async := NewAsync(inner, "telegram", 10*time.Millisecond, reg, zap.NewNop())

	_ = async.Dispatch(context.Background(), Notification{Recipient: &model.User{ID: 1}})
	async.Wait()

	if got := testutil.ToFloat64(reg.NotificationsTotal.WithLabelValues("telegram", "failed")); got != 1 {
		t.Errorf("timed out notification should count as failed, got %v", got)
	}
}

type fakeSender struct {
	params []*bot.SendMessageParams
	err    error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.params = append(f.params, params)
	return &models.Message{ID: 1}, f.err
}

func TestTelegramDispatcher(t *testing.T) {
	sender := &fakeSender{}
	d := NewTelegramDispatcher(sender)

	err := d.Dispatch(context.Background(), Notification{Recipient: &model.User{ID: 1}, Text: "hi"})
	if !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel for user without telegram, got %v", err)
	}

	err = d.Dispatch(context.Background(), Notification{Recipient: &model.User{ID: 1, TelegramID: int64Ptr(777)}, Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.params) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.params))
	}
	if sender.params[0].ChatID != int64(777) || sender.params[0].Text != "hi" {
		t.Errorf("unexpected params: %+v", sender.params[0])
	}

	sender.err = errors.New("forbidden: bot was blocked by the user")
	if err := d.Dispatch(context.Background(), Notification{Recipient: &model.User{ID: 1, TelegramID: int64Ptr(777)}}); err == nil {
		t.Fatal("expected send error")
	}
}

func TestNotifier_Routes(t *testing.T) {
	users := fakeUsers{
		10: {ID: 10, Role: model.RoleCreator},
		20: {ID: 20, Role: model.RoleManager},
	}

	tests := []struct {
		name string
		kind model.EventKind
		want []int64
	}{
		{"booked goes to both", model.EventMeetingBooked, []int64{10, 20}},
		{"reschedule request goes to manager", model.EventRescheduleRequested, []int64{20}},
		{"decision goes to creator", model.EventRescheduleDecided, []int64{10}},
		{"availability change is silent", model.EventAvailabilityChanged, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			n := NewNotifier(users, d, zap.NewNop())

			event := model.NewEvent(tt.kind)
			event.CreatorID = 10
			event.ManagerID = 20

			if err := n.Handle(context.Background(), event); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(d.sent) != len(tt.want) {
				t.Fatalf("sent %d notifications, want %d", len(d.sent), len(tt.want))
			}
			for i, id := range tt.want {
				if d.sent[i].Recipient.ID != id {
					t.Errorf("notification %d went to %d, want %d", i, d.sent[i].Recipient.ID, id)
				}
				if d.sent[i].Text == "" {
					t.Errorf("notification %d has empty text", i)
				}
			}
		})
	}
}

func TestNotifier_RegisteredOnBus(t *testing.T) {
	users := fakeUsers{10: {ID: 10}}
	d := &recordingDispatcher{}
	bus := events.NewBus(zap.NewNop())
	NewNotifier(users, d, zap.NewNop()).Register(bus)

	event := model.NewEvent(model.EventMeetingCompleted)
	event.CreatorID = 10
	bus.Publish(context.Background(), event)

	if len(d.sent) != 1 {
		t.Fatalf("expected notification via bus, got %d", len(d.sent))
	}
}

func TestRender_Reschedule(t *testing.T) {
	event := model.NewEvent(model.EventRescheduleDecided)
	event.Payload["decision"] = string(model.RescheduleStatusRejected)
	event.Payload["date"] = "2024-06-03"
	event.Payload["time"] = "10:00"

	text := Render(event, false)
	if text == "" || text == string(model.EventRescheduleDecided) {
		t.Fatalf("unexpected text %q", text)
	}
}
