package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
)

const (
	// DefaultSlotMinutes длительность слота, если в правиле она не задана
	DefaultSlotMinutes = 60
	// StudioSlotMinutes длительность слота для встреч в студии
	StudioSlotMinutes = 120
)

// OverlapPolicy как обращаться со слотами из пересекающихся правил
type OverlapPolicy string

const (
	// OverlapAllow оставить все слоты, включая дубли (у менеджера может быть ёмкость больше 1)
	OverlapAllow OverlapPolicy = "allow"
	// OverlapDedupe выбросить слоты с уже выданным временем начала
	OverlapDedupe OverlapPolicy = "dedupe"
)

// ParseOverlapPolicy разбирает политику; пустая строка - OverlapAllow
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(s) {
	case "", OverlapAllow:
		return OverlapAllow, nil
	case OverlapDedupe:
		return OverlapDedupe, nil
	}
	return "", fmt.Errorf("unknown overlap policy %q", s)
}

// Slot бронируемое время начала и длительность
type Slot struct {
	Date            time.Time       `json:"date"`
	Start           model.TimeOfDay `json:"start"`
	DurationMinutes int             `json:"duration_minutes"`
}

// RuleConflict два регулярных правила одного дня пересекаются.
// Это ошибка конфигурации: она не исправляется автоматически, а только сообщается.
type RuleConflict struct {
	FirstRuleID  int64 `json:"first_rule_id"`
	SecondRuleID int64 `json:"second_rule_id"`
}

func (c RuleConflict) Error() string {
	return fmt.Sprintf("availability rules %d and %d overlap", c.FirstRuleID, c.SecondRuleID)
}

// Schedule слоты на дату и найденные конфликты правил
type Schedule struct {
	Date      time.Time      `json:"date"`
	Blocked   bool           `json:"blocked"`
	Slots     []Slot         `json:"slots"`
	Conflicts []RuleConflict `json:"conflicts,omitempty"`
}

// Contains проверяет что время начала есть среди слотов
func (s *Schedule) Contains(at model.TimeOfDay) bool {
	for _, slot := range s.Slots {
		if slot.Start == at {
			return true
		}
	}
	return false
}

// SlotDuration длительность слота для правила и цели встречи
func SlotDuration(rule *model.AvailabilityRule, purpose model.MeetingPurpose) int {
	if purpose == model.PurposeStudio {
		return StudioSlotMinutes
	}
	if rule.DurationMinutes > 0 {
		return rule.DurationMinutes
	}
	return DefaultSlotMinutes
}

// DetectConflicts находит попарные пересечения правил
func DetectConflicts(rules []*model.AvailabilityRule) []RuleConflict {
	var conflicts []RuleConflict
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			if rules[i].Overlaps(rules[j]) {
				conflicts = append(conflicts, RuleConflict{FirstRuleID: rules[i].ID, SecondRuleID: rules[j].ID})
			}
		}
	}
	return conflicts
}

// BuildSchedule чистая функция: правила менеджера и дата -> упорядоченный список слотов.
// Закрывающее исключение на дату даёт пустой список, регулярные правила при этом не читаются.
// Слоты выдаются в порядке правил; хвост короче длительности не выдаётся.
func BuildSchedule(date time.Time, override *model.AvailabilityRule, rules []*model.AvailabilityRule, purpose model.MeetingPurpose, policy OverlapPolicy) Schedule {
	schedule := Schedule{Date: model.DateOnly(date), Slots: []Slot{}}

	if override != nil && override.Blocks() {
		schedule.Blocked = true
		return schedule
	}

	weekday := date.Weekday()
	active := make([]*model.AvailabilityRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsAvailable || rule.DayOfWeek == nil || *rule.DayOfWeek != weekday {
			continue
		}
		active = append(active, rule)
	}

	schedule.Conflicts = DetectConflicts(active)

	seen := make(map[model.TimeOfDay]bool)
	for _, rule := range active {
		duration := SlotDuration(rule, purpose)
		for cursor := rule.StartTime; cursor.Add(duration) <= rule.EndTime; cursor = cursor.Add(duration) {
			if policy == OverlapDedupe {
				if seen[cursor] {
					continue
				}
				seen[cursor] = true
			}
			schedule.Slots = append(schedule.Slots, Slot{
				Date:            schedule.Date,
				Start:           cursor,
				DurationMinutes: duration,
			})
		}
	}

	return schedule
}

// SlotGenerator строит слоты по правилам из хранилища
type SlotGenerator struct {
	rules   AvailabilityRuleStore
	policy  OverlapPolicy
	metrics *metrics.Registry
	logger  *zap.Logger
}

func NewSlotGenerator(rules AvailabilityRuleStore, policy OverlapPolicy, metricsReg *metrics.Registry, logger *zap.Logger) *SlotGenerator {
	return &SlotGenerator{
		rules:   rules,
		policy:  policy,
		metrics: metricsReg,
		logger:  logger,
	}
}

// GenerateSlots возвращает слоты менеджера на дату. Только чтение, без побочных эффектов.
func (g *SlotGenerator) GenerateSlots(ctx context.Context, managerID int64, date time.Time, purpose model.MeetingPurpose) (*Schedule, error) {
	date = model.DateOnly(date)
	started := time.Now()

	override, err := g.rules.GetOverride(ctx, managerID, date)
	if err != nil {
		return nil, fmt.Errorf("get override: %w", err)
	}

	if override != nil && override.Blocks() {
		schedule := BuildSchedule(date, override, nil, purpose, g.policy)
		g.metrics.ObserveSlotGeneration(time.Since(started), 0)
		return &schedule, nil
	}

	rules, err := g.rules.ListRecurring(ctx, managerID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}

	schedule := BuildSchedule(date, override, rules, purpose, g.policy)
	g.metrics.ObserveSlotGeneration(time.Since(started), len(schedule.Conflicts))

	for _, conflict := range schedule.Conflicts {
		g.logger.Warn("Overlapping availability rules",
			zap.Int64("manager_id", managerID),
			zap.String("date", model.FormatDate(date)),
			zap.Int64("first_rule_id", conflict.FirstRuleID),
			zap.Int64("second_rule_id", conflict.SecondRuleID),
			zap.String("policy", string(g.policy)),
		)
	}

	return &schedule, nil
}
