package models

import "time"

// User is an SSO-linked portal user. Users are deactivated, never deleted, so that
// history and audit rows keep a valid actor.
type User struct {
	ID                      int64      `gorm:"primaryKey" json:"id"`
	OktaID                  string     `gorm:"uniqueIndex;size:255;not null" json:"okta_id"`
	Email                   string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name                    string     `gorm:"size:255;not null" json:"name"`
	RoleID                  int64      `gorm:"index;not null" json:"role_id"`
	Designation             string     `gorm:"size:50" json:"designation,omitempty"` // TRADER, OPERATIONS
	CanActAsPM              bool       `gorm:"default:false;not null" json:"can_act_as_pm"`
	IsActive                bool       `gorm:"default:true;not null" json:"is_active"`
	LastLoginAt             *time.Time `json:"last_login_at,omitempty"`
	LockedUntil             *time.Time `json:"locked_until,omitempty"`
	PermissionOverrideCount int        `gorm:"default:0;not null" json:"permission_override_count"`
	CreatedBy               *int64     `gorm:"index" json:"created_by,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`

	Role          *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CreatedByUser *User `gorm:"foreignKey:CreatedBy" json:"-"`
}

// Usable reports whether the user may act at time now.
func (u *User) Usable(now time.Time) bool {
	if u == nil || !u.IsActive {
		return false
	}
	return u.LockedUntil == nil || !u.LockedUntil.After(now)
}
