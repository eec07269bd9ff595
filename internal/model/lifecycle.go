package model

import "time"

type StageID string

const (
	StageApplication StageID = "application"
	StageMeeting     StageID = "meeting"
	StageOnboarding  StageID = "onboarding"
	StageContract    StageID = "contract"
	StageAccess      StageID = "access"
)

// StageOrder фиксированный порядок этапов
var StageOrder = []StageID{StageApplication, StageMeeting, StageOnboarding, StageContract, StageAccess}

type StageStatus string

const (
	StageStatusCompleted StageStatus = "completed"
	StageStatusCurrent   StageStatus = "current"
	StageStatusUpcoming  StageStatus = "upcoming"
	StageStatusLocked    StageStatus = "locked"
)

type Stage struct {
	ID          StageID     `json:"id"`
	Status      StageStatus `json:"status"`
	CompletedAt *time.Time  `json:"completed_at"`
}

type Progress struct {
	Stages  []Stage `json:"stages"`
	Percent int     `json:"percent"`
}

// Current возвращает текущий этап, если он есть
func (p Progress) Current() (Stage, bool) {
	for _, s := range p.Stages {
		if s.Status == StageStatusCurrent {
			return s, true
		}
	}
	return Stage{}, false
}
