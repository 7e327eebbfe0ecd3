package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RecommendationStatus string

const (
	RecDraft    RecommendationStatus = "Draft"
	RecProposed RecommendationStatus = "Proposed"
	RecApproved RecommendationStatus = "Approved"
	RecRejected RecommendationStatus = "Rejected"
)

type TradeDirection string

const (
	DirectionBuy        TradeDirection = "Buy"
	DirectionSell       TradeDirection = "Sell"
	DirectionSellShort  TradeDirection = "Sell Short"
	DirectionCoverShort TradeDirection = "Cover Short"
)

func (d TradeDirection) Valid() bool {
	switch d {
	case DirectionBuy, DirectionSell, DirectionSellShort, DirectionCoverShort:
		return true
	}
	return false
}

type TimeHorizon string

const (
	HorizonTrade      TimeHorizon = "Trade"
	HorizonShortTerm  TimeHorizon = "Short Term"
	HorizonLongTerm   TimeHorizon = "Long Term"
	HorizonCustomDate TimeHorizon = "Custom Date"
)

func (h TimeHorizon) Valid() bool {
	switch h {
	case HorizonTrade, HorizonShortTerm, HorizonLongTerm, HorizonCustomDate:
		return true
	}
	return false
}

const (
	MinAnalystScore = 1
	MaxAnalystScore = 10
)

// TradeRecommendation is an analyst's proposed trade. IsDraft mirrors Status == Draft
// and the two are always written together.
type TradeRecommendation struct {
	ID               int64                `gorm:"primaryKey" json:"id"`
	AnalystID        int64                `gorm:"index;not null" json:"analyst_id"`
	SecurityID       int64                `gorm:"index;not null" json:"security_id"`
	TradeDirection   TradeDirection       `gorm:"size:20;not null" json:"trade_direction"`
	CurrentPrice     *decimal.Decimal     `gorm:"type:decimal(18,4)" json:"current_price,omitempty"`
	TargetPrice      decimal.Decimal      `gorm:"type:decimal(18,4);not null" json:"target_price"`
	TimeHorizon      TimeHorizon          `gorm:"size:50;not null" json:"time_horizon"`
	ExpectedExitDate *time.Time           `json:"expected_exit_date,omitempty"`
	AnalystScore     int                  `gorm:"not null" json:"analyst_score"`
	Notes            string               `gorm:"type:text" json:"notes,omitempty"`
	Status           RecommendationStatus `gorm:"size:50;not null;index" json:"status"`
	IsDraft          bool                 `gorm:"not null" json:"is_draft"`
	ApprovedBy       *int64               `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time           `json:"approved_at,omitempty"`
	ApprovalNotes    string               `gorm:"type:text" json:"approval_notes,omitempty"`
	Version          int64                `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`

	Security   *Security                `gorm:"foreignKey:SecurityID" json:"security,omitempty"`
	Strategies []RecommendationStrategy `gorm:"foreignKey:RecommendationID" json:"strategies"`
	Funds      []RecommendationFund     `gorm:"foreignKey:RecommendationID" json:"funds"`
}

type RecommendationStrategy struct {
	ID                 int64     `gorm:"primaryKey" json:"id"`
	RecommendationID   int64     `gorm:"index;not null" json:"recommendation_id"`
	StrategyID         int64     `gorm:"index;not null" json:"strategy_id"`
	CustomStrategyText string    `gorm:"size:255" json:"custom_strategy_text,omitempty"`
	CreatedAt          time.Time `json:"created_at"`

	Strategy *Strategy `gorm:"foreignKey:StrategyID" json:"strategy,omitempty"`
}

type RecommendationFund struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	RecommendationID int64     `gorm:"index;not null" json:"recommendation_id"`
	FundID           int64     `gorm:"index;not null" json:"fund_id"`
	CreatedAt        time.Time `json:"created_at"`

	Fund *Fund `gorm:"foreignKey:FundID" json:"fund,omitempty"`
}

func (r *TradeRecommendation) StrategyIDs() []int64 {
	out := make([]int64, 0, len(r.Strategies))
	for _, s := range r.Strategies {
		out = append(out, s.StrategyID)
	}
	return out
}

func (r *TradeRecommendation) FundIDs() []int64 {
	out := make([]int64, 0, len(r.Funds))
	for _, f := range r.Funds {
		out = append(out, f.FundID)
	}
	return out
}
