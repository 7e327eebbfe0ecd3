package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketDraft     TicketStatus = "Draft"
	TicketSubmitted TicketStatus = "Submitted"
	TicketFilled    TicketStatus = "Filled"
	TicketRejected  TicketStatus = "Rejected"
	TicketError     TicketStatus = "Error"
)

// TradeTicket is a fund-specific order derived from an approved recommendation,
// at most one per (recommendation, fund).
// Its ID doubles as the CRD order id; CRDOrderID is assigned in the same update that
// first moves the ticket to Submitted.
type TradeTicket struct {
	ID                   int64            `gorm:"primaryKey" json:"id"`
	RecommendationID     int64            `gorm:"uniqueIndex:idx_ticket_recommendation_fund;not null" json:"recommendation_id"`
	CreatedBy            int64            `gorm:"index;not null" json:"created_by"`
	SecurityID           int64            `gorm:"index;not null" json:"security_id"`
	FundID               int64            `gorm:"uniqueIndex:idx_ticket_recommendation_fund;index;not null" json:"fund_id"`
	TradeDirection       TradeDirection   `gorm:"size:20;not null" json:"trade_direction"`
	TargetPrice          decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"target_price"`
	CurrentPosition      decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"current_position"`
	BenchmarkPosition    decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"benchmark_position"`
	NewPosition          decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"new_position"`
	AllocationPercentage *decimal.Decimal `gorm:"type:decimal(5,2)" json:"allocation_percentage,omitempty"`
	StrategiesForCRD     string           `gorm:"size:500" json:"strategies_for_crd,omitempty"`
	TimingNotes          string           `gorm:"type:text" json:"timing_notes,omitempty"`
	AccountCode          string           `gorm:"size:50" json:"account_code,omitempty"`
	Status               TicketStatus     `gorm:"size:50;not null;index" json:"status"`

	CRDOrderID       *string          `gorm:"size:50;uniqueIndex" json:"crd_order_id,omitempty"`
	CRDStatus        string           `gorm:"size:50;index" json:"crd_status,omitempty"`
	SubmittedToCRDAt *time.Time       `json:"submitted_to_crd_at,omitempty"`
	FillPrice        *decimal.Decimal `gorm:"type:decimal(18,4)" json:"fill_price,omitempty"`
	FillQuantity     *decimal.Decimal `gorm:"type:decimal(18,4)" json:"fill_quantity,omitempty"`
	FilledAt         *time.Time       `json:"filled_at,omitempty"`
	CRDErrorMessage  string           `gorm:"type:text" json:"crd_error_message,omitempty"`

	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Fund *Fund `gorm:"foreignKey:FundID" json:"fund,omitempty"`
}
