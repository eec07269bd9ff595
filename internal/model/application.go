package model

import "time"

type ApplicationStatus string

// Application status constants
const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusDeclined ApplicationStatus = "declined"
)

// Application represents a creator's application, one per contact identity
type Application struct {
	ID              int64             `json:"id"`
	ContactIdentity string            `json:"contact_identity"`
	DisplayName     string            `json:"display_name"`
	Status          ApplicationStatus `json:"status"`
	AdminNotes      string            `json:"admin_notes"`
	CreatedAt       time.Time         `json:"created_at"`
	ReviewedAt      *time.Time        `json:"reviewed_at"`
}

// IsPending checks if application is waiting for review
func (a *Application) IsPending() bool {
	return a.Status == ApplicationStatusPending
}

// IsReviewed checks if application is already approved or declined
func (a *Application) IsReviewed() bool {
	return a.Status == ApplicationStatusApproved || a.Status == ApplicationStatusDeclined
}
