package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditTrail is an insert-only field-level change log.
type AuditTrail struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	EntityTable string         `gorm:"column:table_name;size:100;not null;index" json:"table_name"`
	RecordID    int64          `gorm:"not null;index" json:"record_id"`
	ActionType  AuditAction    `gorm:"size:20;not null;index" json:"action_type"`
	FieldName   string         `gorm:"size:100" json:"field_name,omitempty"`
	OldValue    *string        `gorm:"type:text" json:"old_value,omitempty"`
	NewValue    *string        `gorm:"type:text" json:"new_value,omitempty"`
	ChangedBy   int64          `gorm:"not null;index" json:"changed_by"`
	ChangedAt   time.Time      `gorm:"not null;index" json:"changed_at"`
	SessionID   string         `gorm:"size:100" json:"session_id,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string         `gorm:"size:500" json:"user_agent,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}

func (AuditTrail) TableName() string { return "audit_trail" }

type RecommendationStatusHistory struct {
	ID               int64                 `gorm:"primaryKey" json:"id"`
	RecommendationID int64                 `gorm:"index;not null" json:"recommendation_id"`
	OldStatus        *RecommendationStatus `gorm:"size:50" json:"old_status,omitempty"`
	NewStatus        RecommendationStatus  `gorm:"size:50;not null" json:"new_status"`
	ChangedBy        int64                 `gorm:"not null" json:"changed_by"`
	Notes            string                `gorm:"type:text" json:"notes,omitempty"`
	ChangedAt        time.Time             `gorm:"not null" json:"changed_at"`
}

func (RecommendationStatusHistory) TableName() string { return "recommendation_status_history" }

type TradeTicketStatusHistory struct {
	ID            int64         `gorm:"primaryKey" json:"id"`
	TradeTicketID int64         `gorm:"index;not null" json:"trade_ticket_id"`
	OldStatus     *TicketStatus `gorm:"size:50" json:"old_status,omitempty"`
	NewStatus     TicketStatus  `gorm:"size:50;not null" json:"new_status"`
	ChangedBy     int64         `gorm:"not null" json:"changed_by"`
	Notes         string        `gorm:"type:text" json:"notes,omitempty"`
	ChangedAt     time.Time     `gorm:"not null" json:"changed_at"`
}

func (TradeTicketStatusHistory) TableName() string { return "trade_ticket_status_history" }
