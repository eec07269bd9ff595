package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/google/uuid"
)

// Контракты хранилищ. Реализации на pgx лежат в пакете repository.

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	SetManager(ctx context.Context, creatorID, managerID int64) error
}

type AvailabilityRuleStore interface {
	ListRecurring(ctx context.Context, managerID int64, weekday time.Weekday) ([]*model.AvailabilityRule, error)
	GetOverride(ctx context.Context, managerID int64, date time.Time) (*model.AvailabilityRule, error)
}

type AvailabilityRuleAdmin interface {
	AvailabilityRuleStore
	Create(ctx context.Context, rule *model.AvailabilityRule) error
	Delete(ctx context.Context, managerID, ruleID int64) error
	ListByManager(ctx context.Context, managerID int64) ([]*model.AvailabilityRule, error)
	ListAllRecurring(ctx context.Context) ([]*model.AvailabilityRule, error)
}

type MeetingStore interface {
	Create(ctx context.Context, meeting *model.Meeting) error
	GetByID(ctx context.Context, id int64) (*model.Meeting, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]*model.Meeting, error)
	ListBookedByManagerDate(ctx context.Context, managerID int64, date time.Time) ([]*model.Meeting, error)
	UpdateBooking(ctx context.Context, meeting *model.Meeting) error
	UpdateStatus(ctx context.Context, id int64, from, to model.MeetingStatus) error
	SaveReschedule(ctx context.Context, meetingID int64, req *model.RescheduleRequest) error
	ApplyReschedule(ctx context.Context, meetingID int64, requestID uuid.UUID, decidedAt time.Time) error
	RejectReschedule(ctx context.Context, meetingID int64, requestID uuid.UUID, decidedAt time.Time) error
	Complete(ctx context.Context, meetingID int64, completedAt time.Time, grant *model.AccessLevel) (before, after *model.AccessLevel, err error)
}

type AccessLevelStore interface {
	Get(ctx context.Context, creatorID int64) (*model.AccessLevel, error)
	Set(ctx context.Context, level *model.AccessLevel) error
}

type ApplicationStore interface {
	Create(ctx context.Context, app *model.Application) error
	GetByID(ctx context.Context, id int64) (*model.Application, error)
	GetByContactIdentity(ctx context.Context, contact string) (*model.Application, error)
	Approve(ctx context.Context, id int64, notes string, reviewedAt time.Time, creator *model.User) (*model.Meeting, error)
	Decline(ctx context.Context, id int64, notes string, reviewedAt time.Time) error
	UpdateNotes(ctx context.Context, id int64, notes string) error
}

type OnboardingStore interface {
	Get(ctx context.Context, creatorID int64) (*model.OnboardingProgress, error)
	Save(ctx context.Context, progress *model.OnboardingProgress) error
}

type ContractStore interface {
	Get(ctx context.Context, creatorID int64) (*model.Contract, error)
	Sign(ctx context.Context, creatorID int64, signedAt time.Time) (bool, error)
}

// EventPublisher принимает доменные события после фиксации изменений
type EventPublisher interface {
	Publish(ctx context.Context, event model.Event)
}

// noopPublisher используется, если шина событий не передана
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.Event) {}
