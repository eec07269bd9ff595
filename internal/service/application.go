package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository"
	"go.uber.org/zap"
)

// ReviewDecision решение администратора по заявке
type ReviewDecision struct {
	Approve bool
	Notes   string
	// ManagerID необязательный менеджер, назначаемый при одобрении
	ManagerID *int64
}

type ApplicationService struct {
	applications ApplicationStore
	users        UserStore
	meetings     MeetingStore
	events       EventPublisher
	now          func() time.Time
	logger       *zap.Logger
}

func NewApplicationService(
	applications ApplicationStore,
	users UserStore,
	meetings MeetingStore,
	events EventPublisher,
	logger *zap.Logger,
) *ApplicationService {
	if events == nil {
		events = noopPublisher{}
	}
	return &ApplicationService{
		applications: applications,
		users:        users,
		meetings:     meetings,
		events:       events,
		now:          time.Now,
		logger:       logger,
	}
}

// Submit принимает заявку. На один контакт допускается одна заявка.
func (s *ApplicationService) Submit(ctx context.Context, contact, displayName string) (*model.Application, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, fmt.Errorf("%w: contact identity is required", ErrInvalidInput)
	}

	existing, err := s.applications.GetByContactIdentity(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}

	if existing != nil {
		return nil, ErrApplicationExists
	}

	app := &model.Application{
		ContactIdentity: contact,
		DisplayName:     strings.TrimSpace(displayName),
		Status:          model.ApplicationStatusPending,
	}

	if err := s.applications.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrApplicationExists
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.logger.Info("Application submitted",
		zap.Int64("application_id", app.ID),
		zap.String("contact", contact),
	)

	return app, nil
}

// Review одобряет или отклоняет заявку. При одобрении создаётся создатель, а если
// назначен менеджер - ещё и ознакомительная встреча без слота.
func (s *ApplicationService) Review(ctx context.Context, admin *model.User, appID int64, decision ReviewDecision) (*model.Application, *model.User, error) {
	if admin == nil || !admin.Role.IsAdmin() {
		return nil, nil, ErrForbidden
	}

	app, err := s.applications.GetByID(ctx, appID)
	if err != nil {
		return nil, nil, fmt.Errorf("get application: %w", err)
	}

	if app == nil {
		return nil, nil, ErrApplicationNotFound
	}

	if app.IsReviewed() {
		return nil, nil, ErrApplicationReviewed
	}

	reviewedAt := s.now().UTC()

	if !decision.Approve {
		if err := s.applications.Decline(ctx, app.ID, decision.Notes, reviewedAt); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, ErrApplicationReviewed
			}
			return nil, nil, fmt.Errorf("decline application: %w", err)
		}

		app.Status = model.ApplicationStatusDeclined
		app.AdminNotes = decision.Notes
		app.ReviewedAt = &reviewedAt

		s.logger.Info("Application declined",
			zap.Int64("application_id", app.ID),
			zap.Int64("admin_id", admin.ID),
		)
		s.publishReviewed(ctx, app, 0)

		return app, nil, nil
	}

	if decision.ManagerID != nil {
		if _, err := s.staffManager(ctx, *decision.ManagerID); err != nil {
			return nil, nil, err
		}
	}

	creator := &model.User{
		ContactIdentity: app.ContactIdentity,
		DisplayName:     app.DisplayName,
		Role:            model.RoleCreator,
		ManagerID:       decision.ManagerID,
	}

	meeting, err := s.applications.Approve(ctx, app.ID, decision.Notes, reviewedAt, creator)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrApplicationReviewed
		}
		return nil, nil, fmt.Errorf("approve application: %w", err)
	}

	app.Status = model.ApplicationStatusApproved
	app.AdminNotes = decision.Notes
	app.ReviewedAt = &reviewedAt

	fields := []zap.Field{
		zap.Int64("application_id", app.ID),
		zap.Int64("admin_id", admin.ID),
		zap.Int64("creator_id", creator.ID),
	}
	if meeting != nil {
		fields = append(fields, zap.Int64("onboarding_meeting_id", meeting.ID))
	}
	s.logger.Info("Application approved", fields...)
	s.publishReviewed(ctx, app, creator.ID)

	return app, creator, nil
}

// UpdateNotes заметки администратора можно менять в любом статусе
func (s *ApplicationService) UpdateNotes(ctx context.Context, admin *model.User, appID int64, notes string) error {
	if admin == nil || !admin.Role.IsAdmin() {
		return ErrForbidden
	}

	if err := s.applications.UpdateNotes(ctx, appID, notes); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("update notes: %w", err)
	}

	return nil
}

// AssignManager назначает создателю менеджера. Если ознакомительной встречи ещё нет,
// создаётся встреча без слота у нового менеджера.
func (s *ApplicationService) AssignManager(ctx context.Context, admin *model.User, creatorID, managerID int64) (*model.User, error) {
	if admin == nil || !admin.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	if creatorID == managerID {
		return nil, ErrInvalidAssignment
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}

	if creator == nil {
		return nil, ErrCreatorNotFound
	}

	if _, err := s.staffManager(ctx, managerID); err != nil {
		return nil, err
	}

	if err := s.users.SetManager(ctx, creatorID, managerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCreatorNotFound
		}
		return nil, fmt.Errorf("set manager: %w", err)
	}
	creator.ManagerID = &managerID

	if err := s.ensureOnboardingMeeting(ctx, creator); err != nil {
		return nil, err
	}

	s.logger.Info("Manager assigned",
		zap.Int64("creator_id", creatorID),
		zap.Int64("manager_id", managerID),
		zap.Int64("admin_id", admin.ID),
	)

	return creator, nil
}

func (s *ApplicationService) staffManager(ctx context.Context, managerID int64) (*model.User, error) {
	manager, err := s.users.GetByID(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("get manager: %w", err)
	}

	if manager == nil {
		return nil, fmt.Errorf("%w: manager %d not found", ErrInvalidAssignment, managerID)
	}

	if !manager.Role.IsStaff() {
		return nil, fmt.Errorf("%w: user %d is not staff", ErrInvalidAssignment, managerID)
	}

	return manager, nil
}

// ensureOnboardingMeeting переносит незабронированную встречу к новому менеджеру
// или создаёт её, если ознакомительной встречи ещё нет
func (s *ApplicationService) ensureOnboardingMeeting(ctx context.Context, creator *model.User) error {
	meetings, err := s.meetings.ListByCreator(ctx, creator.ID)
	if err != nil {
		return fmt.Errorf("list meetings: %w", err)
	}

	existing := OnboardingMeeting(meetings)
	if existing != nil && existing.Status != model.MeetingStatusCancelled {
		if existing.Status != model.MeetingStatusNotBooked || existing.ManagerID == *creator.ManagerID {
			return nil
		}
		existing.ManagerID = *creator.ManagerID
		if err := s.meetings.UpdateBooking(ctx, existing); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("move onboarding meeting: %w", err)
		}
		return nil
	}

	meeting := &model.Meeting{
		CreatorID: creator.ID,
		ManagerID: *creator.ManagerID,
		Type:      model.MeetingTypeRemote,
		Purpose:   model.PurposeOnboarding,
		Status:    model.MeetingStatusNotBooked,
	}

	if err := s.meetings.Create(ctx, meeting); err != nil {
		if errors.Is(err, repository.ErrOnboardingExists) {
			return nil
		}
		return fmt.Errorf("create onboarding meeting: %w", err)
	}

	return nil
}

func (s *ApplicationService) publishReviewed(ctx context.Context, app *model.Application, creatorID int64) {
	event := model.NewEvent(model.EventApplicationReviewed)
	event.CreatorID = creatorID
	event.Payload["application_id"] = fmt.Sprint(app.ID)
	event.Payload["decision"] = string(app.Status)
	s.events.Publish(ctx, event)
}
