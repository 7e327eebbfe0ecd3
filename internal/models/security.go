package models

import "time"

type SecuritySource string

const (
	SourceIVP       SecuritySource = "IVP"
	SourceTemporary SecuritySource = "TEMPORARY"
	SourceManual    SecuritySource = "MANUAL"
)

// Security is a tradable instrument. TEMPORARY securities carry no IVP identifier
// until they are resolved; IsResolved implies ResolvedToIVPID and ResolvedAt are set.
type Security struct {
	ID              int64          `gorm:"primaryKey" json:"id"`
	Ticker          string         `gorm:"uniqueIndex;size:20;not null" json:"ticker"`
	Name            string         `gorm:"size:255" json:"name,omitempty"`
	SourceType      SecuritySource `gorm:"size:20;not null;default:'TEMPORARY'" json:"source_type"`
	IVPSecurityID   string         `gorm:"size:50;index" json:"ivp_security_id,omitempty"`
	IsActive        bool           `gorm:"default:true;not null" json:"is_active"`
	IsResolved      bool           `gorm:"default:false;not null" json:"is_resolved"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy      *int64         `json:"resolved_by,omitempty"`
	ResolvedToIVPID string         `gorm:"size:50" json:"resolved_to_ivp_id,omitempty"`
	Notes           string         `gorm:"type:text" json:"notes,omitempty"`
	PriorityLevel   string         `gorm:"size:20;not null;default:'NORMAL'" json:"priority_level"`
	CreatedBy       *int64         `json:"created_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type Fund struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:10;not null" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  bool      `gorm:"default:true;not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Strategy struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description     string    `gorm:"type:text" json:"description,omitempty"`
	IsActive        bool      `gorm:"default:true;not null" json:"is_active"`
	IsSystemDefault bool      `gorm:"default:false;not null" json:"is_system_default"`
	CreatedBy       *int64    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
