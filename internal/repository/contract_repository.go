package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContractRepository struct {
	pool *pgxpool.Pool
}

func NewContractRepository(pool *pgxpool.Pool) *ContractRepository {
	return &ContractRepository{pool: pool}
}

// Get получает договор создателя, nil если его нет
func (r *ContractRepository) Get(ctx context.Context, creatorID int64) (*model.Contract, error) {
	var contract model.Contract
	err := r.pool.QueryRow(ctx, `SELECT creator_id, signed_at FROM contracts WHERE creator_id = $1`, creatorID).
		Scan(&contract.CreatorID, &contract.SignedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}

	return &contract, nil
}

// Sign фиксирует подпись; повторная подпись не меняет исходную дату.
// Возвращает true если договор подписан этим вызовом.
func (r *ContractRepository) Sign(ctx context.Context, creatorID int64, signedAt time.Time) (bool, error) {
	query := `
		INSERT INTO contracts (creator_id, signed_at)
		VALUES ($1, $2)
		ON CONFLICT (creator_id) DO UPDATE
		SET signed_at = EXCLUDED.signed_at
		WHERE contracts.signed_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, creatorID, signedAt)
	if err != nil {
		return false, fmt.Errorf("sign contract: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
