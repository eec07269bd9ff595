package model

import "time"

// AvailabilityRule правило доступности менеджера.
// Либо регулярное (DayOfWeek), либо исключение на конкретную дату (SpecificDate).
type AvailabilityRule struct {
	ID              int64         `json:"id"`
	ManagerID       int64         `json:"manager_id"`
	DayOfWeek       *time.Weekday `json:"day_of_week"`   // 0 = Sunday, 6 = Saturday
	SpecificDate    *time.Time    `json:"specific_date"` // только дата
	StartTime       TimeOfDay     `json:"start_time"`
	EndTime         TimeOfDay     `json:"end_time"`
	DurationMinutes int           `json:"duration_minutes"` // 0 - длительность по умолчанию
	IsAvailable     bool          `json:"is_available"`
	CreatedAt       time.Time     `json:"created_at"`
}

// IsRecurring правило повторяется каждую неделю
func (r *AvailabilityRule) IsRecurring() bool {
	return r.DayOfWeek != nil
}

// IsOverride правило относится к конкретной дате
func (r *AvailabilityRule) IsOverride() bool {
	return r.SpecificDate != nil
}

// Blocks исключение полностью закрывает дату
func (r *AvailabilityRule) Blocks() bool {
	return r.IsOverride() && !r.IsAvailable
}

// Overlaps проверяет пересечение окон двух правил
func (r *AvailabilityRule) Overlaps(other *AvailabilityRule) bool {
	return r.StartTime < other.EndTime && other.StartTime < r.EndTime
}
