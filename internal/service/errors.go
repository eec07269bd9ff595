package service

import "errors"

// Ошибки записи на встречу. Все безопасно повторять после изменения ввода.
var (
	ErrNoManagerAssigned          = errors.New("no manager assigned")
	ErrInvalidAssignment          = errors.New("invalid manager assignment")
	ErrSlotUnavailable            = errors.New("slot unavailable")
	ErrDuplicateOnboardingMeeting = errors.New("onboarding meeting already booked")
)

// ErrManagerProfileMissing менеджер указан, но его профиль не найден - нарушение целостности данных
var ErrManagerProfileMissing = errors.New("manager profile missing")

var (
	ErrCreatorNotFound     = errors.New("creator not found")
	ErrMeetingNotFound     = errors.New("meeting not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid meeting status transition")
	ErrNoPendingReschedule = errors.New("no pending reschedule request")
	ErrReschedulePending   = errors.New("reschedule request already pending")
	ErrApplicationReviewed = errors.New("application already reviewed")
	ErrApplicationExists   = errors.New("application already submitted")
	ErrSectionLocked       = errors.New("onboarding section locked")
	ErrOverrideExists      = errors.New("date override already exists")
	ErrRuleNotFound        = errors.New("availability rule not found")
)
