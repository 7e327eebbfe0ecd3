package tickets

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
)

const table = "trade_tickets"

var hundred = decimal.NewFromInt(100)

// Input describes one fund's ticket. A nil TargetPrice inherits the recommendation's.
type Input struct {
	FundID               int64            `json:"fund_id"`
	TargetPrice          *decimal.Decimal `json:"target_price"`
	CurrentPosition      decimal.Decimal  `json:"current_position"`
	BenchmarkPosition    decimal.Decimal  `json:"benchmark_position"`
	NewPosition          decimal.Decimal  `json:"new_position"`
	AllocationPercentage *decimal.Decimal `json:"allocation_percentage"`
	TimingNotes          string           `json:"timing_notes"`
	AccountCode          string           `json:"account_code"`
}

// Patch lists the fields editable on a draft ticket. Nil means unchanged.
type Patch struct {
	TargetPrice          *decimal.Decimal `json:"target_price"`
	CurrentPosition      *decimal.Decimal `json:"current_position"`
	BenchmarkPosition    *decimal.Decimal `json:"benchmark_position"`
	NewPosition          *decimal.Decimal `json:"new_position"`
	AllocationPercentage *decimal.Decimal `json:"allocation_percentage"`
	TimingNotes          *string          `json:"timing_notes"`
	AccountCode          *string          `json:"account_code"`
}

type Fill struct {
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	FilledAt  *time.Time      `json:"filled_at"`
	CRDStatus string          `json:"crd_status"`
}

type Report struct {
	Message   string `json:"message"`
	CRDStatus string `json:"crd_status"`
}

func validatePrice(p *decimal.Decimal) error {
	if p != nil && !p.IsPositive() {
		return apperr.Validation("target price must be positive")
	}
	return nil
}

func validateAllocation(p *decimal.Decimal) error {
	if p != nil && (p.IsNegative() || p.GreaterThan(hundred)) {
		return apperr.Validation("allocation percentage must be between 0 and 100")
	}
	return nil
}

// strategyLabel joins the recommendation's strategy names for CRD. Custom text
// replaces the strategy name when present.
func strategyLabel(rec *models.TradeRecommendation) string {
	names := make([]string, 0, len(rec.Strategies))
	for _, s := range rec.Strategies {
		switch {
		case strings.TrimSpace(s.CustomStrategyText) != "":
			names = append(names, strings.TrimSpace(s.CustomStrategyText))
		case s.Strategy != nil:
			names = append(names, s.Strategy.Name)
		}
	}
	label := strings.Join(names, ", ")
	if len(label) > 500 {
		label = label[:500]
	}
	return label
}

func snapshot(t *models.TradeTicket) map[string]any {
	return map[string]any{
		"fund_id":               t.FundID,
		"trade_direction":       t.TradeDirection,
		"target_price":          t.TargetPrice,
		"current_position":      t.CurrentPosition,
		"benchmark_position":    t.BenchmarkPosition,
		"new_position":          t.NewPosition,
		"allocation_percentage": t.AllocationPercentage,
		"timing_notes":          t.TimingNotes,
		"account_code":          t.AccountCode,
		"status":                t.Status,
		"crd_order_id":          t.CRDOrderID,
		"crd_status":            t.CRDStatus,
		"submitted_to_crd_at":   t.SubmittedToCRDAt,
		"fill_price":            t.FillPrice,
		"fill_quantity":         t.FillQuantity,
		"filled_at":             t.FilledAt,
		"crd_error_message":     t.CRDErrorMessage,
	}
}
