package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind тип доменного события
type EventKind string

const (
	EventMeetingBooked       EventKind = "meeting_booked"
	EventMeetingConfirmed    EventKind = "meeting_confirmed"
	EventMeetingCompleted    EventKind = "meeting_completed"
	EventMeetingCancelled    EventKind = "meeting_cancelled"
	EventRescheduleRequested EventKind = "reschedule_requested"
	EventRescheduleDecided   EventKind = "reschedule_decided"
	EventAccessLevelChanged  EventKind = "access_level_changed"
	EventAvailabilityChanged EventKind = "availability_changed"
	EventApplicationReviewed EventKind = "application_reviewed"
)

type Event struct {
	ID         uuid.UUID         `json:"id"`
	Kind       EventKind         `json:"kind"`
	OccurredAt time.Time         `json:"occurred_at"`
	CreatorID  int64             `json:"creator_id,omitempty"`
	ManagerID  int64             `json:"manager_id,omitempty"`
	MeetingID  int64             `json:"meeting_id,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// NewEvent создаёт событие с новым идентификатором
func NewEvent(kind EventKind) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Payload:    map[string]string{},
	}
}
