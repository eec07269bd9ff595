package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/patrickmn/go-cache"
)

// RuleSource хранилище правил, которое кешируется
type RuleSource interface {
	ListRecurring(ctx context.Context, managerID int64, weekday time.Weekday) ([]*model.AvailabilityRule, error)
	GetOverride(ctx context.Context, managerID int64, date time.Time) (*model.AvailabilityRule, error)
}

// RuleCache read-through кеш правил доступности.
// Сбрасывается по событию availability_changed для менеджера.
type RuleCache struct {
	source  RuleSource
	cache   *cache.Cache
	metrics *metrics.Registry
}

func NewRuleCache(source RuleSource, ttl time.Duration, metricsReg *metrics.Registry) *RuleCache {
	return &RuleCache{
		source:  source,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metricsReg,
	}
}

func managerPrefix(managerID int64) string {
	return fmt.Sprintf("manager:%d:", managerID)
}

func (c *RuleCache) ListRecurring(ctx context.Context, managerID int64, weekday time.Weekday) ([]*model.AvailabilityRule, error) {
	key := fmt.Sprintf("%srecurring:%d", managerPrefix(managerID), weekday)

	if val, found := c.cache.Get(key); found {
		c.metrics.ObserveRuleCache(true)
		return val.([]*model.AvailabilityRule), nil
	}
	c.metrics.ObserveRuleCache(false)

	rules, err := c.source.ListRecurring(ctx, managerID, weekday)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, rules)
	return rules, nil
}

func (c *RuleCache) GetOverride(ctx context.Context, managerID int64, date time.Time) (*model.AvailabilityRule, error) {
	key := fmt.Sprintf("%soverride:%s", managerPrefix(managerID), model.FormatDate(date))

	if val, found := c.cache.Get(key); found {
		c.metrics.ObserveRuleCache(true)
		return val.(*model.AvailabilityRule), nil
	}
	c.metrics.ObserveRuleCache(false)

	rule, err := c.source.GetOverride(ctx, managerID, date)
	if err != nil {
		return nil, err
	}

	// отсутствие исключения тоже кешируется
	c.cache.SetDefault(key, rule)
	return rule, nil
}

// Invalidate сбрасывает все записи менеджера
func (c *RuleCache) Invalidate(managerID int64) {
	prefix := managerPrefix(managerID)
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

// Handle обработчик шины событий
func (c *RuleCache) Handle(ctx context.Context, event model.Event) error {
	if event.Kind == model.EventAvailabilityChanged {
		c.Invalidate(event.ManagerID)
	}
	return nil
}
