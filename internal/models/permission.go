package models

import "time"

type PermissionCategory string

const (
	CategoryUI         PermissionCategory = "UI"
	CategoryFunctional PermissionCategory = "Functional"
	CategoryBusiness   PermissionCategory = "Business"
	CategoryAdmin      PermissionCategory = "Admin"
)

// Permission keys checked by the workflow.
const (
	PermCreateRecommendation   = "trade.create_recommendation"
	PermEditOwnDrafts          = "trade.edit_own_drafts"
	PermDeleteOwnDrafts        = "trade.delete_own_drafts"
	PermViewOwnHistory         = "trade.view_own_history"
	PermViewAllRecommendations = "trade.view_all_recommendations"
	PermApproveRecommendations = "trade.approve_recommendations"
	PermCreateTickets          = "trade.create_tickets"
	PermSubmitToCRD            = "trade.submit_to_crd"
	PermUserManagement         = "admin.user_management"
	PermSystemConfig           = "admin.system_config"
	PermViewAuditLogs          = "admin.view_audit_logs"
)

type Permission struct {
	ID          int64              `gorm:"primaryKey" json:"id"`
	Key         string             `gorm:"column:permission_key;uniqueIndex;size:100;not null" json:"key"`
	Category    PermissionCategory `gorm:"size:50;not null" json:"category"`
	DisplayName string             `gorm:"size:100;not null" json:"display_name"`
	Description string             `gorm:"size:255" json:"description"`
	IsActive    bool               `gorm:"default:true;not null" json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// UserPermission overrides a role default for one user. At most one override per
// (user, permission) is active at a time.
type UserPermission struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"index:idx_user_permission_active;not null" json:"user_id"`
	PermissionID int64      `gorm:"index:idx_user_permission_active;not null" json:"permission_id"`
	IsGranted    bool       `gorm:"not null" json:"is_granted"`
	IsForced     bool       `gorm:"default:false;not null" json:"is_forced"`
	Reason       string     `gorm:"size:255" json:"reason,omitempty"`
	GrantedBy    int64      `gorm:"not null" json:"granted_by"`
	GrantedAt    time.Time  `gorm:"not null" json:"granted_at"`
	ExpiresAt    *time.Time `gorm:"index" json:"expires_at,omitempty"`
	IsActive     bool       `gorm:"default:true;not null;index:idx_user_permission_active" json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Permission *Permission `gorm:"foreignKey:PermissionID" json:"permission,omitempty"`
}

// LiveAt reports whether the override participates in resolution at now.
func (p UserPermission) LiveAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
