package model

import (
	"database/sql/driver"
	"fmt"
)

// Role закрытый набор ролей пользователя
type Role string

const (
	RoleCreator    Role = "creator"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) String() string { return string(r) }

// Valid проверяет что роль известна
func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsStaff возвращает true для административных и менеджерских ролей
func (r Role) IsStaff() bool {
	switch r {
	case RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin возвращает true только для администраторов
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ParseRole разбирает роль из строки
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Scan implements the sql.Scanner interface
func (r *Role) Scan(src interface{}) error {
	if src == nil {
		*r = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*r = Role(v)
	case []byte:
		*r = Role(v)
	default:
		return fmt.Errorf("Role: cannot scan type %T", src)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (r Role) Value() (driver.Value, error) { return string(r), nil }
