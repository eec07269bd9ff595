package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/service"
	"go.uber.org/zap"
)

// RuleAuditor проверка пересечений правил доступности
type RuleAuditor interface {
	Audit(ctx context.Context) ([]service.ManagerConflict, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	auditor  RuleAuditor
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(auditor RuleAuditor, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		auditor:  auditor,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("rule_audit_interval", s.interval))

	go s.runRuleAuditTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

// runRuleAuditTask периодически ищет пересекающиеся регулярные правила
func (s *Scheduler) runRuleAuditTask(ctx context.Context) {
	defer close(s.done)

	// первый запуск сразу при старте
	s.auditRules(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.auditRules(ctx)
		case <-s.stopChan:
			s.logger.Info("Rule audit task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Rule audit task cancelled")
			return
		}
	}
}

func (s *Scheduler) auditRules(ctx context.Context) {
	conflicts, err := s.auditor.Audit(ctx)
	if err != nil {
		s.logger.Error("Failed to audit availability rules", zap.Error(err))
		return
	}

	for _, c := range conflicts {
		s.logger.Warn("Overlapping availability rules",
			zap.Int64("manager_id", c.ManagerID),
			zap.String("weekday", c.Weekday.String()),
			zap.Int64("first_rule_id", c.FirstRuleID),
			zap.Int64("second_rule_id", c.SecondRuleID),
		)
	}

	s.logger.Info("Availability rule audit completed", zap.Int("conflicts", len(conflicts)))
}
