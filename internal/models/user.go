package models

import (
	"time"
)

// User roles
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// User owns uploads, packages, and shipments
type User struct {
	ID           string  `json:"id" gorm:"primaryKey;size:36"`
	Email        string  `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string  `json:"-" gorm:"size:100;not null"`
	Role         string  `json:"role" gorm:"size:20;not null;default:operator"`
	TOTPSecret   *string `json:"-" gorm:"size:64"` // admin accounts only

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user may call admin endpoints
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
