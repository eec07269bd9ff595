package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LifecycleInputs пять независимых записей, из которых складывается прогресс
type LifecycleInputs struct {
	Application *model.Application
	Meeting     *model.Meeting // ознакомительная встреча
	Onboarding  *model.OnboardingProgress
	Contract    *model.Contract
	Access      *model.AccessLevel
}

type stagePredicate struct {
	id          model.StageID
	completed   bool
	completedAt *time.Time
}

func (in LifecycleInputs) predicates() []stagePredicate {
	var stages [5]stagePredicate
	for i, id := range model.StageOrder {
		stages[i].id = id
	}

	if in.Application != nil {
		stages[0].completed = true
		at := in.Application.CreatedAt
		if in.Application.ReviewedAt != nil {
			at = *in.Application.ReviewedAt
		}
		stages[0].completedAt = &at
	}
	if in.Meeting != nil && in.Meeting.Status == model.MeetingStatusCompleted {
		stages[1].completed = true
		stages[1].completedAt = in.Meeting.CompletedAt
	}
	if in.Onboarding != nil && in.Onboarding.IsCompleted {
		stages[2].completed = true
		stages[2].completedAt = in.Onboarding.CompletedAt
	}
	if in.Contract.Signed() {
		stages[3].completed = true
		stages[3].completedAt = in.Contract.SignedAt
	}
	if in.Access != nil && in.Access.Level == model.LevelFullAccess {
		stages[4].completed = true
		at := in.Access.GrantedAt
		stages[4].completedAt = &at
	}

	return stages[:]
}

// ComputeStages детерминированно строит упорядоченный список этапов.
// Текущим становится первый незавершённый этап с завершённым предшественником;
// больше одного текущего этапа быть не может.
func ComputeStages(in LifecycleInputs) model.Progress {
	predicates := in.predicates()
	stages := make([]model.Stage, 0, len(predicates))

	completed := 0
	currentAssigned := false
	for i, p := range predicates {
		stage := model.Stage{ID: p.id}
		switch {
		case p.completed:
			stage.Status = model.StageStatusCompleted
			stage.CompletedAt = p.completedAt
			completed++
		case i == 0:
			stage.Status = model.StageStatusLocked
		case predicates[i-1].completed && !currentAssigned:
			stage.Status = model.StageStatusCurrent
			currentAssigned = true
		default:
			stage.Status = model.StageStatusUpcoming
		}
		stages = append(stages, stage)
	}

	return model.Progress{
		Stages:  stages,
		Percent: int(math.Round(float64(completed) * 100 / float64(len(predicates)))),
	}
}

// OnboardingMeeting выбирает ознакомительную встречу среди встреч создателя,
// предпочитая неотменённую
func OnboardingMeeting(meetings []*model.Meeting) *model.Meeting {
	var cancelled *model.Meeting
	for _, m := range meetings {
		if !m.IsOnboarding() {
			continue
		}
		if m.Status != model.MeetingStatusCancelled {
			return m
		}
		cancelled = m
	}
	return cancelled
}

type LifecycleService struct {
	users        UserStore
	applications ApplicationStore
	meetings     MeetingStore
	onboarding   OnboardingStore
	contracts    ContractStore
	access       AccessLevelStore
	logger       *zap.Logger
}

func NewLifecycleService(
	users UserStore,
	applications ApplicationStore,
	meetings MeetingStore,
	onboarding OnboardingStore,
	contracts ContractStore,
	access AccessLevelStore,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		users:        users,
		applications: applications,
		meetings:     meetings,
		onboarding:   onboarding,
		contracts:    contracts,
		access:       access,
		logger:       logger,
	}
}

// Stages читает пять записей параллельно, без общего снимка.
// Результат носит справочный характер; авторизация проверяется отдельно.
func (s *LifecycleService) Stages(ctx context.Context, creatorID int64) (model.Progress, error) {
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return model.Progress{}, fmt.Errorf("get creator: %w", err)
	}

	if creator == nil {
		return model.Progress{}, ErrCreatorNotFound
	}

	var in LifecycleInputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app, err := s.applications.GetByContactIdentity(gctx, creator.ContactIdentity)
		if err != nil {
			return fmt.Errorf("get application: %w", err)
		}
		in.Application = app
		return nil
	})
	g.Go(func() error {
		meetings, err := s.meetings.ListByCreator(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("list meetings: %w", err)
		}
		in.Meeting = OnboardingMeeting(meetings)
		return nil
	})
	g.Go(func() error {
		progress, err := s.onboarding.Get(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("get onboarding: %w", err)
		}
		in.Onboarding = progress
		return nil
	})
	g.Go(func() error {
		contract, err := s.contracts.Get(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("get contract: %w", err)
		}
		in.Contract = contract
		return nil
	})
	g.Go(func() error {
		access, err := s.access.Get(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("get access level: %w", err)
		}
		in.Access = access
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.Progress{}, err
	}

	progress := ComputeStages(in)

	s.logger.Debug("Lifecycle computed",
		zap.Int64("creator_id", creatorID),
		zap.Int("percent", progress.Percent))

	return progress, nil
}
