package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the user_role enum type from the database
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User maps to the users table. Rows are written by the main backend's
// GitHub OAuth flow; this service only reads them to scope token ownership
// and to gate the admin surfaces.
type User struct {
	UserID      string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"user_id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime:false;default:timezone('utc', now())" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime:false;default:timezone('utc', now())" json:"updated_at"`
	Username    string         `gorm:"type:text;not null;uniqueIndex" json:"username"`
	Email       string         `gorm:"type:text;not null" json:"email"`
	DisplayName *string        `gorm:"type:text" json:"display_name"`
	AvatarURL   *string        `gorm:"type:text" json:"avatar_url"`
	Roles       pq.StringArray `gorm:"type:user_role[];default:ARRAY['user'::user_role];not null" json:"roles"`
}

// TableName specifies the table name for the model
func (User) TableName() string {
	return "users"
}

// HasRole returns true if the user has the given role
func (u *User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r == string(role) {
			return true
		}
	}
	return false
}
