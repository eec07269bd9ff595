package notify

import (
	"context"
	"errors"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
)

// ErrNoChannel у получателя нет канала доставки
var ErrNoChannel = errors.New("recipient has no delivery channel")

// Notification сообщение пользователю о событии
type Notification struct {
	Kind      model.EventKind
	Recipient *model.User
	Text      string
	Payload   map[string]string
}

func (n Notification) RecipientID() int64 {
	if n.Recipient == nil {
		return 0
	}
	return n.Recipient.ID
}

// Dispatcher доставляет уведомление получателю
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher только пишет уведомление в лог, когда telegram не настроен
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n Notification) error {
	d.logger.Info("Notification",
		zap.String("kind", string(n.Kind)),
		zap.Int64("recipient_id", n.RecipientID()),
		zap.String("text", n.Text),
	)
	return nil
}
