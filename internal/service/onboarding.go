package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
)

type OnboardingService struct {
	users      UserStore
	access     AccessLevelStore
	meetings   MeetingStore
	onboarding OnboardingStore
	now        func() time.Time
	logger     *zap.Logger
}

func NewOnboardingService(
	users UserStore,
	access AccessLevelStore,
	meetings MeetingStore,
	onboarding OnboardingStore,
	logger *zap.Logger,
) *OnboardingService {
	return &OnboardingService{
		users:      users,
		access:     access,
		meetings:   meetings,
		onboarding: onboarding,
		now:        time.Now,
		logger:     logger,
	}
}

// CompleteSection отмечает раздел профиля заполненным
func (s *OnboardingService) CompleteSection(ctx context.Context, creatorID int64, section int) (*model.OnboardingProgress, error) {
	if !model.ValidSection(section) {
		return nil, fmt.Errorf("%w: section %d out of range", ErrInvalidInput, section)
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}

	if creator == nil {
		return nil, ErrCreatorNotFound
	}

	if section > model.AlwaysEditableSections {
		record, err := s.access.Get(ctx, creatorID)
		if err != nil {
			return nil, fmt.Errorf("get access level: %w", err)
		}

		meetings, err := s.meetings.ListByCreator(ctx, creatorID)
		if err != nil {
			return nil, fmt.Errorf("list meetings: %w", err)
		}

		onboarding := OnboardingMeeting(meetings)
		meetingDone := onboarding != nil && onboarding.Status == model.MeetingStatusCompleted

		if !CanEditSection(Resolve(creator, record), meetingDone, section) {
			return nil, ErrSectionLocked
		}
	}

	progress, err := s.onboarding.Get(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get onboarding progress: %w", err)
	}

	if progress == nil {
		progress = &model.OnboardingProgress{CreatorID: creatorID}
	}

	if progress.MarkSection(section) && !progress.IsCompleted {
		completedAt := s.now().UTC()
		progress.IsCompleted = true
		progress.CompletedAt = &completedAt
	}

	if err := s.onboarding.Save(ctx, progress); err != nil {
		return nil, fmt.Errorf("save onboarding progress: %w", err)
	}

	s.logger.Info("Onboarding section completed",
		zap.Int64("creator_id", creatorID),
		zap.Int("section", section),
		zap.Int("completed_sections", len(progress.CompletedSections)),
		zap.Bool("is_completed", progress.IsCompleted),
	)

	return progress, nil
}
