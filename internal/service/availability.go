package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository"
	"go.uber.org/zap"
)

// ManagerConflict пересечение регулярных правил менеджера в один день недели
type ManagerConflict struct {
	ManagerID int64
	Weekday   time.Weekday
	RuleConflict
}

// AvailabilityService управление правилами доступности менеджеров
type AvailabilityService struct {
	rules  AvailabilityRuleAdmin
	events EventPublisher
	logger *zap.Logger
}

func NewAvailabilityService(rules AvailabilityRuleAdmin, events EventPublisher, logger *zap.Logger) *AvailabilityService {
	if events == nil {
		events = noopPublisher{}
	}
	return &AvailabilityService{
		rules:  rules,
		events: events,
		logger: logger,
	}
}

func canManageRules(actor *model.User, managerID int64) bool {
	if actor == nil {
		return false
	}
	return actor.Role.IsAdmin() || (actor.Role.IsStaff() && actor.ID == managerID)
}

func validateRule(rule *model.AvailabilityRule) error {
	if rule.IsRecurring() == rule.IsOverride() {
		return fmt.Errorf("%w: either day_of_week or specific_date must be set", ErrInvalidInput)
	}
	if rule.DayOfWeek != nil && (*rule.DayOfWeek < time.Sunday || *rule.DayOfWeek > time.Saturday) {
		return fmt.Errorf("%w: day_of_week out of range", ErrInvalidInput)
	}
	if !rule.StartTime.Valid() || !rule.EndTime.Valid() || rule.StartTime >= rule.EndTime {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidInput)
	}
	if rule.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	return nil
}

// CreateRule добавляет регулярное правило или исключение на дату
func (s *AvailabilityService) CreateRule(ctx context.Context, actor *model.User, rule *model.AvailabilityRule) error {
	if !canManageRules(actor, rule.ManagerID) {
		return ErrForbidden
	}

	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.SpecificDate != nil {
		date := model.DateOnly(*rule.SpecificDate)
		rule.SpecificDate = &date
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrOverrideExists
		}
		return fmt.Errorf("create rule: %w", err)
	}

	s.logger.Info("Availability rule created",
		zap.Int64("rule_id", rule.ID),
		zap.Int64("manager_id", rule.ManagerID),
		zap.Bool("recurring", rule.IsRecurring()),
		zap.Bool("is_available", rule.IsAvailable),
	)

	s.publishChanged(ctx, rule.ManagerID, rule.ID)

	return nil
}

// DeleteRule удаляет правило менеджера
func (s *AvailabilityService) DeleteRule(ctx context.Context, actor *model.User, managerID, ruleID int64) error {
	if !canManageRules(actor, managerID) {
		return ErrForbidden
	}

	if err := s.rules.Delete(ctx, managerID, ruleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("delete rule: %w", err)
	}

	s.logger.Info("Availability rule deleted",
		zap.Int64("rule_id", ruleID),
		zap.Int64("manager_id", managerID),
	)

	s.publishChanged(ctx, managerID, ruleID)

	return nil
}

// ListRules все правила менеджера
func (s *AvailabilityService) ListRules(ctx context.Context, managerID int64) ([]*model.AvailabilityRule, error) {
	rules, err := s.rules.ListByManager(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// Audit ищет пересекающиеся регулярные правила по всем менеджерам
func (s *AvailabilityService) Audit(ctx context.Context) ([]ManagerConflict, error) {
	rules, err := s.rules.ListAllRecurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}

	type key struct {
		managerID int64
		weekday   time.Weekday
	}

	groups := make(map[key][]*model.AvailabilityRule)
	for _, rule := range rules {
		if rule.DayOfWeek == nil || !rule.IsAvailable {
			continue
		}
		k := key{managerID: rule.ManagerID, weekday: *rule.DayOfWeek}
		groups[k] = append(groups[k], rule)
	}

	var conflicts []ManagerConflict
	for k, group := range groups {
		for _, c := range DetectConflicts(group) {
			conflicts = append(conflicts, ManagerConflict{ManagerID: k.managerID, Weekday: k.weekday, RuleConflict: c})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].ManagerID != conflicts[j].ManagerID {
			return conflicts[i].ManagerID < conflicts[j].ManagerID
		}
		if conflicts[i].Weekday != conflicts[j].Weekday {
			return conflicts[i].Weekday < conflicts[j].Weekday
		}
		return conflicts[i].FirstRuleID < conflicts[j].FirstRuleID
	})

	return conflicts, nil
}

func (s *AvailabilityService) publishChanged(ctx context.Context, managerID, ruleID int64) {
	event := model.NewEvent(model.EventAvailabilityChanged)
	event.ManagerID = managerID
	event.Payload["rule_id"] = fmt.Sprint(ruleID)
	s.events.Publish(ctx, event)
}
