package model

import "time"

// User создатель контента или сотрудник (менеджер, администратор)
type User struct {
	ID                  int64     `json:"id"`
	TelegramID          *int64    `json:"telegram_id"` // nil - уведомления в telegram не отправляются
	ContactIdentity     string    `json:"contact_identity"`
	DisplayName         string    `json:"display_name"`
	Role                Role      `json:"role"`
	ManagerID           *int64    `json:"manager_id"`            // nil - менеджер ещё не назначен
	AutoApproveBookings bool      `json:"auto_approve_bookings"` // для менеджеров: сразу подтверждать записи
	CreatedAt           time.Time `json:"created_at"`
}

// HasManager проверяет назначен ли менеджер
func (u *User) HasManager() bool {
	return u.ManagerID != nil
}
