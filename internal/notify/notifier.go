package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/creator_pipeline/internal/events"
	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
)

// UserLookup поиск получателей уведомлений
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type audience int

const (
	toCreator audience = 1 << iota
	toManager
)

// routes кому отправляется уведомление о событии
var routes = map[model.EventKind]audience{
	model.EventMeetingBooked:       toCreator | toManager,
	model.EventMeetingConfirmed:    toCreator | toManager,
	model.EventMeetingCancelled:    toCreator | toManager,
	model.EventMeetingCompleted:    toCreator,
	model.EventRescheduleRequested: toManager,
	model.EventRescheduleDecided:   toCreator,
	model.EventAccessLevelChanged:  toCreator,
	model.EventApplicationReviewed: toCreator,
}

// Notifier превращает доменные события в уведомления участникам
type Notifier struct {
	users      UserLookup
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewNotifier(users UserLookup, dispatcher Dispatcher, logger *zap.Logger) *Notifier {
	return &Notifier{
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Register подписывает уведомления на шину
func (n *Notifier) Register(bus *events.Bus) {
	kinds := make([]model.EventKind, 0, len(routes))
	for kind := range routes {
		kinds = append(kinds, kind)
	}
	bus.Subscribe(n.Handle, kinds...)
}

// Handle отправляет уведомления по событию
func (n *Notifier) Handle(ctx context.Context, event model.Event) error {
	aud, ok := routes[event.Kind]
	if !ok {
		return nil
	}

	var recipients []int64
	if aud&toCreator != 0 && event.CreatorID != 0 {
		recipients = append(recipients, event.CreatorID)
	}
	if aud&toManager != 0 && event.ManagerID != 0 {
		recipients = append(recipients, event.ManagerID)
	}

	var firstErr error
	for _, id := range recipients {
		user, err := n.users.GetByID(ctx, id)
		if err != nil || user == nil {
			n.logger.Warn("Failed to get user for notification",
				zap.Int64("user_id", id),
				zap.String("kind", string(event.Kind)),
				zap.Error(err))
			continue
		}

		err = n.dispatcher.Dispatch(ctx, Notification{
			Kind:      event.Kind,
			Recipient: user,
			Text:      Render(event, user.ID == event.ManagerID),
			Payload:   event.Payload,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("dispatch to %d: %w", id, err)
		}
	}

	return firstErr
}

// Render текст уведомления. forManager - получатель менеджер встречи.
func Render(event model.Event, forManager bool) string {
	p := event.Payload
	when := fmt.Sprintf("%s %s", p["date"], p["time"])

	switch event.Kind {
	case model.EventMeetingBooked:
		if forManager {
			return fmt.Sprintf("📥 Новая запись на встречу\n\nДата: %s\nОжидает вашего подтверждения.", when)
		}
		return fmt.Sprintf("📝 Заявка на встречу отправлена\n\nДата: %s\nМенеджер подтвердит её в ближайшее время.", when)
	case model.EventMeetingConfirmed:
		return fmt.Sprintf("✅ Встреча подтверждена\n\nДата: %s", when)
	case model.EventMeetingCancelled:
		return fmt.Sprintf("❌ Встреча отменена\n\nДата: %s", when)
	case model.EventMeetingCompleted:
		return "🎉 Встреча проведена. Спасибо!"
	case model.EventRescheduleRequested:
		return fmt.Sprintf("🔁 Запрос на перенос встречи\n\nНовое время: %s %s", p["requested_date"], p["requested_time"])
	case model.EventRescheduleDecided:
		if p["decision"] == string(model.RescheduleStatusApproved) {
			return fmt.Sprintf("✅ Перенос одобрен\n\nНовое время: %s", when)
		}
		return fmt.Sprintf("❌ Перенос отклонён\n\nВстреча остаётся: %s", when)
	case model.EventAccessLevelChanged:
		return fmt.Sprintf("🔓 Уровень доступа изменён: %s", p["to"])
	case model.EventApplicationReviewed:
		if p["decision"] == string(model.ApplicationStatusApproved) {
			return "✅ Ваша заявка одобрена! Добро пожаловать."
		}
		return "К сожалению, ваша заявка отклонена."
	}
	return string(event.Kind)
}
