package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
)

type ContractService struct {
	users     UserStore
	contracts ContractStore
	now       func() time.Time
	logger    *zap.Logger
}

func NewContractService(users UserStore, contracts ContractStore, logger *zap.Logger) *ContractService {
	return &ContractService{
		users:     users,
		contracts: contracts,
		now:       time.Now,
		logger:    logger,
	}
}

// Sign подписывает договор. Повторная подпись не меняет исходную дату.
func (s *ContractService) Sign(ctx context.Context, creatorID int64) (*model.Contract, error) {
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}

	if creator == nil {
		return nil, ErrCreatorNotFound
	}

	signed, err := s.contracts.Sign(ctx, creatorID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("sign contract: %w", err)
	}

	contract, err := s.contracts.Get(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}

	if signed {
		s.logger.Info("Contract signed", zap.Int64("creator_id", creatorID))
	}

	return contract, nil
}
