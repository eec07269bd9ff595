package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const ruleColumns = `id, manager_id, day_of_week, specific_date, start_time, end_time, duration_minutes, is_available, created_at`

// AvailabilityRepository управляет правилами доступности менеджеров
type AvailabilityRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAvailabilityRepository создаёт новый репозиторий
func NewAvailabilityRepository(pool *pgxpool.Pool, logger *zap.Logger) *AvailabilityRepository {
	return &AvailabilityRepository{
		pool:   pool,
		logger: logger,
	}
}

func scanRule(row pgx.Row) (*model.AvailabilityRule, error) {
	var (
		rule      model.AvailabilityRule
		dayOfWeek *int16
		date      pgtype.Date
		start     pgtype.Time
		end       pgtype.Time
	)

	err := row.Scan(
		&rule.ID,
		&rule.ManagerID,
		&dayOfWeek,
		&date,
		&start,
		&end,
		&rule.DurationMinutes,
		&rule.IsAvailable,
		&rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dayOfWeek != nil {
		wd := time.Weekday(*dayOfWeek)
		rule.DayOfWeek = &wd
	}
	rule.SpecificDate = fromPGDate(date)
	if t := fromPGTime(start); t != nil {
		rule.StartTime = *t
	}
	if t := fromPGTime(end); t != nil {
		rule.EndTime = *t
	}

	return &rule, nil
}

// Create создаёт правило доступности
func (r *AvailabilityRepository) Create(ctx context.Context, rule *model.AvailabilityRule) error {
	query := `
		INSERT INTO availability_rules (manager_id, day_of_week, specific_date, start_time, end_time, duration_minutes, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	var dayOfWeek *int16
	if rule.DayOfWeek != nil {
		wd := int16(*rule.DayOfWeek)
		dayOfWeek = &wd
	}

	err := r.pool.QueryRow(
		ctx,
		query,
		rule.ManagerID,
		dayOfWeek,
		toPGDate(rule.SpecificDate),
		toPGTime(&rule.StartTime),
		toPGTime(&rule.EndTime),
		rule.DurationMinutes,
		rule.IsAvailable,
	).Scan(&rule.ID, &rule.CreatedAt)

	if err != nil {
		if _, ok := base.UniqueViolation(err); ok {
			return ErrDuplicate
		}
		return fmt.Errorf("create availability rule: %w", err)
	}

	return nil
}

// Delete удаляет правило менеджера
func (r *AvailabilityRepository) Delete(ctx context.Context, managerID, ruleID int64) error {
	query := `DELETE FROM availability_rules WHERE id = $1 AND manager_id = $2`

	result, err := r.pool.Exec(ctx, query, ruleID, managerID)
	if err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByManager получает все правила менеджера
func (r *AvailabilityRepository) ListByManager(ctx context.Context, managerID int64) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE manager_id = $1
		ORDER BY specific_date NULLS FIRST, day_of_week, start_time
	`
	return r.list(ctx, "list rules by manager", query, managerID)
}

// ListRecurring получает открытые регулярные правила менеджера на день недели.
// Порядок - по времени начала, как их видит менеджер.
func (r *AvailabilityRepository) ListRecurring(ctx context.Context, managerID int64, weekday time.Weekday) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE manager_id = $1 AND day_of_week = $2 AND is_available = true
		ORDER BY start_time, id
	`
	return r.list(ctx, "list recurring rules", query, managerID, int16(weekday))
}

// ListAllRecurring получает все открытые регулярные правила для аудита
func (r *AvailabilityRepository) ListAllRecurring(ctx context.Context) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE day_of_week IS NOT NULL AND is_available = true
		ORDER BY manager_id, day_of_week, start_time, id
	`
	return r.list(ctx, "list all recurring rules", query)
}

// GetOverride получает исключение менеджера на дату, nil если его нет
func (r *AvailabilityRepository) GetOverride(ctx context.Context, managerID int64, date time.Time) (*model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE manager_id = $1 AND specific_date = $2
	`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, managerID, toPGDate(&date)))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get override: %w", err)
	}

	return rule, nil
}

func (r *AvailabilityRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rules []*model.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.logger.Debug("Availability rules loaded", zap.String("op", op), zap.Int("count", len(rules)))

	return rules, nil
}
