package models

import "time"

const (
	RoleAnalyst          = "Analyst"
	RolePortfolioManager = "Portfolio_Manager"
	RoleAdministrator    = "Administrator"
)

type Role struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:50;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	IsActive    bool      `gorm:"default:true;not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RolePermission is a role-level default. Only rows with IsGranted contribute to a
// user's effective permissions.
type RolePermission struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	RoleID       int64     `gorm:"uniqueIndex:idx_role_permission;not null" json:"role_id"`
	PermissionID int64     `gorm:"uniqueIndex:idx_role_permission;not null" json:"permission_id"`
	IsGranted    bool      `gorm:"not null" json:"is_granted"`
	CreatedAt    time.Time `json:"created_at"`

	Role       *Role       `gorm:"foreignKey:RoleID" json:"-"`
	Permission *Permission `gorm:"foreignKey:PermissionID" json:"permission,omitempty"`
}
