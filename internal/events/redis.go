package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultStream поток Redis для доменных событий
const DefaultStream = "creator_pipeline:events"

// StreamAdder часть клиента Redis, нужная для записи в поток
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher пересылает события в Redis Stream для внешних потребителей
type RedisPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

func NewRedisPublisher(client StreamAdder, stream string, maxLen int64) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Handle пишет событие в поток: XADD stream * kind <kind> data <json>
func (p *RedisPublisher) Handle(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"kind": string(event.Kind),
			"data": string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("add to stream: %w", err)
	}

	return nil
}
