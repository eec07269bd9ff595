package model

import (
	"time"

	"github.com/google/uuid"
)

type MeetingStatus string

const (
	MeetingStatusNotBooked MeetingStatus = "not_booked" // Создана при одобрении заявки
	MeetingStatusPending   MeetingStatus = "pending"    // Ожидает подтверждения менеджера
	MeetingStatusConfirmed MeetingStatus = "confirmed"  // Подтверждена
	MeetingStatusCompleted MeetingStatus = "completed"  // Проведена
	MeetingStatusCancelled MeetingStatus = "cancelled"  // Отменена
)

// meetingStatusOrder допустимый порядок продвижения статусов
var meetingStatusOrder = map[MeetingStatus]int{
	MeetingStatusNotBooked: 0,
	MeetingStatusPending:   1,
	MeetingStatusConfirmed: 2,
	MeetingStatusCompleted: 3,
}

// IsTerminal статус больше не меняется
func (s MeetingStatus) IsTerminal() bool {
	return s == MeetingStatusCompleted || s == MeetingStatusCancelled
}

// IsBooked у встречи есть занятый слот
func (s MeetingStatus) IsBooked() bool {
	return s == MeetingStatusPending || s == MeetingStatusConfirmed || s == MeetingStatusCompleted
}

// CanTransition статус движется только вперёд; отмена возможна из любого незавершённого
func (s MeetingStatus) CanTransition(to MeetingStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == MeetingStatusCancelled {
		return true
	}
	from, ok := meetingStatusOrder[s]
	if !ok {
		return false
	}
	next, ok := meetingStatusOrder[to]
	if !ok {
		return false
	}
	return next > from
}

type MeetingType string

const (
	MeetingTypeRemote   MeetingType = "remote"
	MeetingTypeInPerson MeetingType = "in_person"
)

func (t MeetingType) Valid() bool {
	return t == MeetingTypeRemote || t == MeetingTypeInPerson
}

type MeetingPurpose string

const (
	PurposeOnboarding MeetingPurpose = "onboarding"
	PurposeFollowUp   MeetingPurpose = "follow_up"
	PurposeFeedback   MeetingPurpose = "feedback"
	PurposeStudio     MeetingPurpose = "studio"
	PurposeOther      MeetingPurpose = "other"
)

func (p MeetingPurpose) Valid() bool {
	switch p {
	case PurposeOnboarding, PurposeFollowUp, PurposeFeedback, PurposeStudio, PurposeOther:
		return true
	}
	return false
}

type RescheduleStatus string

const (
	RescheduleStatusPending  RescheduleStatus = "pending"
	RescheduleStatusApproved RescheduleStatus = "approved"
	RescheduleStatusRejected RescheduleStatus = "rejected"
)

// RescheduleRequest запрос на перенос. Подтверждённые дата и время встречи
// не меняются, пока менеджер не одобрит запрос.
type RescheduleRequest struct {
	ID            uuid.UUID        `json:"id"`
	RequestedDate time.Time        `json:"requested_date"`
	RequestedTime TimeOfDay        `json:"requested_time"`
	RequestedBy   int64            `json:"requested_by"`
	RequestedAt   time.Time        `json:"requested_at"`
	Status        RescheduleStatus `json:"status"`
	DecidedAt     *time.Time       `json:"decided_at"`
}

// IsPending запрос ожидает решения
func (r *RescheduleRequest) IsPending() bool {
	return r != nil && r.Status == RescheduleStatusPending
}

type Meeting struct {
	ID          int64              `json:"id"`
	CreatorID   int64              `json:"creator_id"`
	ManagerID   int64              `json:"manager_id"`
	Date        *time.Time         `json:"date"` // nil пока встреча не забронирована
	Time        *TimeOfDay         `json:"time"`
	Type        MeetingType        `json:"type"`
	Purpose     MeetingPurpose     `json:"purpose"`
	Status      MeetingStatus      `json:"status"`
	CompletedAt *time.Time         `json:"completed_at"`
	Reschedule  *RescheduleRequest `json:"reschedule,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IsOnboarding встреча ознакомительная
func (m *Meeting) IsOnboarding() bool {
	return m.Purpose == PurposeOnboarding
}

// Occupies встреча занимает указанный слот
func (m *Meeting) Occupies(date time.Time, at TimeOfDay) bool {
	if !m.Status.IsBooked() || m.Date == nil || m.Time == nil {
		return false
	}
	return SameDate(*m.Date, date) && *m.Time == at
}
