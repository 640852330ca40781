// Package models contains data structures for the forum's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role names accepted by the admin roles endpoint.
const (
	RoleAdmin     = "Admin"
	RoleModerator = "Moderator"
	RoleUser      = "User"
)

// User represents a forum member.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email       string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password    string         `gorm:"not null" json:"-"`
	Bio         string         `json:"bio"`
	AvatarURL   string         `json:"avatar_url"`
	Reputation  int            `gorm:"not null;default:0" json:"reputation"`
	IsAdmin     bool           `gorm:"not null;default:false" json:"is_admin"`
	IsModerator bool           `gorm:"not null;default:false" json:"is_moderator"`
	LockedUntil *time.Time     `json:"locked_until,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsLocked reports whether the account is locked at the given instant.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// CanModerate reports whether the user may see hidden content.
func (u *User) CanModerate() bool {
	return u.IsAdmin || u.IsModerator
}

// Roles returns the role names held by the user.
func (u *User) Roles() []string {
	roles := []string{RoleUser}
	if u.IsModerator {
		roles = append(roles, RoleModerator)
	}
	if u.IsAdmin {
		roles = append(roles, RoleAdmin)
	}
	return roles
}

// UserSummary is the public projection embedded in other payloads.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}
