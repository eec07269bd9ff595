package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"go.uber.org/zap"
)

// DefaultTimeout время на одну доставку
const DefaultTimeout = 10 * time.Second

// Async доставляет уведомления в фоне. Ошибки логируются и считаются,
// вызывающему всегда возвращается nil.
type Async struct {
	next    Dispatcher
	channel string
	timeout time.Duration
	metrics *metrics.Registry
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Dispatcher, channel string, timeout time.Duration, metricsReg *metrics.Registry, logger *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Async{
		next:    next,
		channel: channel,
		timeout: timeout,
		metrics: metricsReg,
		logger:  logger,
	}
}

func (a *Async) Dispatch(ctx context.Context, n Notification) error {
	// запрос может завершиться раньше доставки
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		err := a.next.Dispatch(ctx, n)
		if errors.Is(err, ErrNoChannel) {
			a.logger.Debug("Notification skipped, no channel",
				zap.String("kind", string(n.Kind)),
				zap.Int64("recipient_id", n.RecipientID()),
			)
			return
		}

		a.metrics.ObserveNotification(a.channel, err)

		if err != nil {
			a.logger.Warn("Failed to deliver notification",
				zap.String("kind", string(n.Kind)),
				zap.Int64("recipient_id", n.RecipientID()),
				zap.Error(err),
			)
		}
	}()

	return nil
}

// Wait ждёт завершения начатых доставок
func (a *Async) Wait() {
	a.wg.Wait()
}
