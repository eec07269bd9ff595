package events

import (
	"context"
	"sync"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
)

// Handler обработчик события. Ошибка только логируется.
type Handler func(ctx context.Context, event model.Event) error

// Bus внутрипроцессная шина событий
type Bus struct {
	mu       sync.RWMutex
	handlers map[model.EventKind][]Handler
	all      []Handler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[model.EventKind][]Handler),
		logger:   logger,
	}
}

// Subscribe подписывает обработчик на события указанных типов
func (b *Bus) Subscribe(handler Handler, kinds ...model.EventKind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range kinds {
		b.handlers[kind] = append(b.handlers[kind], handler)
	}
}

// SubscribeAll подписывает обработчик на все события
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.all = append(b.all, handler)
}

// Publish вызывает обработчики по очереди в порядке подписки
func (b *Bus) Publish(ctx context.Context, event model.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Kind])+len(b.all))
	handlers = append(handlers, b.handlers[event.Kind]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(ctx, handler, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, handler Handler, event model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("kind", string(event.Kind)),
				zap.String("event_id", event.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := handler(ctx, event); err != nil {
		b.logger.Warn("Event handler failed",
			zap.String("kind", string(event.Kind)),
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
	}
}
