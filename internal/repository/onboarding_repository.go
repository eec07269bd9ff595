package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OnboardingRepository struct {
	pool *pgxpool.Pool
}

func NewOnboardingRepository(pool *pgxpool.Pool) *OnboardingRepository {
	return &OnboardingRepository{pool: pool}
}

// Get получает прогресс заполнения профиля, nil если создатель ещё не начинал
func (r *OnboardingRepository) Get(ctx context.Context, creatorID int64) (*model.OnboardingProgress, error) {
	query := `
		SELECT creator_id, completed_sections, is_completed, completed_at, updated_at
		FROM onboarding_progress
		WHERE creator_id = $1
	`

	var (
		progress model.OnboardingProgress
		sections []int32
	)
	err := r.pool.QueryRow(ctx, query, creatorID).Scan(
		&progress.CreatorID,
		&sections,
		&progress.IsCompleted,
		&progress.CompletedAt,
		&progress.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get onboarding progress: %w", err)
	}

	progress.CompletedSections = make([]int, 0, len(sections))
	for _, s := range sections {
		progress.CompletedSections = append(progress.CompletedSections, int(s))
	}

	return &progress, nil
}

// Save сохраняет прогресс целиком
func (r *OnboardingRepository) Save(ctx context.Context, progress *model.OnboardingProgress) error {
	query := `
		INSERT INTO onboarding_progress (creator_id, completed_sections, is_completed, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (creator_id) DO UPDATE
		SET completed_sections = EXCLUDED.completed_sections,
		    is_completed = EXCLUDED.is_completed,
		    completed_at = COALESCE(onboarding_progress.completed_at, EXCLUDED.completed_at),
		    updated_at = now()
		RETURNING updated_at
	`

	sections := make([]int32, 0, len(progress.CompletedSections))
	for _, s := range progress.CompletedSections {
		sections = append(sections, int32(s))
	}

	err := r.pool.QueryRow(ctx, query, progress.CreatorID, sections, progress.IsCompleted, progress.CompletedAt).
		Scan(&progress.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save onboarding progress: %w", err)
	}

	return nil
}
