package model

import "time"

// Level уровень доступа создателя
type Level string

const (
	LevelNoAccess    Level = "no_access"
	LevelMeetingOnly Level = "meeting_only"
	LevelFullAccess  Level = "full_access"
)

// Rank порядок уровней для монотонного повышения
func (l Level) Rank() int {
	switch l {
	case LevelMeetingOnly:
		return 1
	case LevelFullAccess:
		return 2
	}
	return 0
}

func (l Level) Valid() bool {
	return l == LevelNoAccess || l == LevelMeetingOnly || l == LevelFullAccess
}

// AtLeast сравнивает уровни
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// GrantMethod способ выдачи доступа
type GrantMethod string

const (
	GrantMethodAdmin            GrantMethod = "admin"
	GrantMethodMeetingCompleted GrantMethod = "meeting_completed"
	GrantMethodEarlyAccess      GrantMethod = "early_access"
)

type AccessLevel struct {
	CreatorID int64       `json:"creator_id"`
	Level     Level       `json:"level"`
	GrantedBy *int64      `json:"granted_by"` // nil - выдан автоматически
	GrantedAt time.Time   `json:"granted_at"`
	Method    GrantMethod `json:"method"`
}
