package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// levelRank повторяет model.Level.Rank на стороне postgres
const levelRank = `CASE %s WHEN 'full_access' THEN 2 WHEN 'meeting_only' THEN 1 ELSE 0 END`

type AccessLevelRepository struct {
	pool *pgxpool.Pool
}

func NewAccessLevelRepository(pool *pgxpool.Pool) *AccessLevelRepository {
	return &AccessLevelRepository{pool: pool}
}

// Get получает уровень доступа создателя, nil если записи нет
func (r *AccessLevelRepository) Get(ctx context.Context, creatorID int64) (*model.AccessLevel, error) {
	return getAccessLevel(ctx, r.pool, creatorID, false)
}

// Set административно устанавливает уровень доступа, в том числе понижая его
func (r *AccessLevelRepository) Set(ctx context.Context, level *model.AccessLevel) error {
	query := `
		INSERT INTO access_levels (creator_id, level, granted_by, granted_at, method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (creator_id) DO UPDATE
		SET level = EXCLUDED.level,
		    granted_by = EXCLUDED.granted_by,
		    granted_at = EXCLUDED.granted_at,
		    method = EXCLUDED.method
	`

	_, err := r.pool.Exec(ctx, query, level.CreatorID, level.Level, level.GrantedBy, level.GrantedAt, level.Method)
	if err != nil {
		return fmt.Errorf("set access level: %w", err)
	}

	return nil
}

func getAccessLevel(ctx context.Context, q base.Querier, creatorID int64, forUpdate bool) (*model.AccessLevel, error) {
	query := `
		SELECT creator_id, level, granted_by, granted_at, method
		FROM access_levels
		WHERE creator_id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var level model.AccessLevel
	err := q.QueryRow(ctx, query, creatorID).Scan(
		&level.CreatorID,
		&level.Level,
		&level.GrantedBy,
		&level.GrantedAt,
		&level.Method,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get access level: %w", err)
	}

	return &level, nil
}

// upgradeAccessLevel записывает grant только если он выше текущего уровня
func upgradeAccessLevel(ctx context.Context, q base.Querier, grant *model.AccessLevel) error {
	query := `
		INSERT INTO access_levels (creator_id, level, granted_by, granted_at, method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (creator_id) DO UPDATE
		SET level = EXCLUDED.level,
		    granted_by = EXCLUDED.granted_by,
		    granted_at = EXCLUDED.granted_at,
		    method = EXCLUDED.method
		WHERE ` + fmt.Sprintf(levelRank, "access_levels.level") + ` < ` + fmt.Sprintf(levelRank, "EXCLUDED.level")

	_, err := q.Exec(ctx, query, grant.CreatorID, grant.Level, grant.GrantedBy, grant.GrantedAt, grant.Method)
	if err != nil {
		return fmt.Errorf("upgrade access level: %w", err)
	}

	return nil
}
