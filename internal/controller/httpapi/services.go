package httpapi

import (
	"context"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/service"
)

// Зависимости хендлеров. Реализации в пакете service.

type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	ListManagers(ctx context.Context) ([]*model.User, error)
}

type SlotService interface {
	GenerateSlots(ctx context.Context, managerID int64, date time.Time, purpose model.MeetingPurpose) (*service.Schedule, error)
}

type BookingService interface {
	BookOrReschedule(ctx context.Context, req service.BookingRequest) (*model.Meeting, error)
	DecideReschedule(ctx context.Context, actor *model.User, meetingID int64, approve bool) (*model.Meeting, error)
	ConfirmMeeting(ctx context.Context, actor *model.User, meetingID int64) (*model.Meeting, error)
	CancelMeeting(ctx context.Context, actor *model.User, meetingID int64) (*model.Meeting, error)
	CompleteMeeting(ctx context.Context, actor *model.User, meetingID int64) (*model.Meeting, error)
	OpenSlots(ctx context.Context, creatorID int64, date time.Time, purpose model.MeetingPurpose) (*service.Schedule, error)
}

type LifecycleService interface {
	Stages(ctx context.Context, creatorID int64) (model.Progress, error)
}

type AccessService interface {
	Resolve(ctx context.Context, userID int64) (model.Level, error)
	GrantAccess(ctx context.Context, admin *model.User, creatorID int64, level model.Level) (*model.AccessLevel, error)
}

type ApplicationService interface {
	Submit(ctx context.Context, contact, displayName string) (*model.Application, error)
	Review(ctx context.Context, admin *model.User, appID int64, decision service.ReviewDecision) (*model.Application, *model.User, error)
	UpdateNotes(ctx context.Context, admin *model.User, appID int64, notes string) error
	AssignManager(ctx context.Context, admin *model.User, creatorID, managerID int64) (*model.User, error)
}

type OnboardingService interface {
	CompleteSection(ctx context.Context, creatorID int64, section int) (*model.OnboardingProgress, error)
}

type ContractService interface {
	Sign(ctx context.Context, creatorID int64) (*model.Contract, error)
}

type AvailabilityService interface {
	CreateRule(ctx context.Context, actor *model.User, rule *model.AvailabilityRule) error
	DeleteRule(ctx context.Context, actor *model.User, managerID, ruleID int64) error
	ListRules(ctx context.Context, managerID int64) ([]*model.AvailabilityRule, error)
}

// LinkCodeIssuer выдаёт одноразовые коды привязки telegram
type LinkCodeIssuer interface {
	Issue(userID int64) (string, time.Duration)
}

// Services набор зависимостей роутера
type Services struct {
	Users        UserDirectory
	Slots        SlotService
	Booking      BookingService
	Lifecycle    LifecycleService
	Access       AccessService
	Applications ApplicationService
	Onboarding   OnboardingService
	Contracts    ContractService
	Availability AvailabilityService
	LinkCodes    LinkCodeIssuer // nil - привязка telegram отключена
}
