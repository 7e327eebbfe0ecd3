package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tradeflow/internal/models"
)

const table = "trade_recommendations"

type StrategyRef struct {
	StrategyID int64  `json:"strategy_id"`
	CustomText string `json:"custom_text,omitempty"`
}

type CreateInput struct {
	SecurityID       int64                 `json:"security_id"`
	TradeDirection   models.TradeDirection `json:"trade_direction"`
	CurrentPrice     *decimal.Decimal      `json:"current_price"`
	TargetPrice      *decimal.Decimal      `json:"target_price"`
	TimeHorizon      models.TimeHorizon    `json:"time_horizon"`
	ExpectedExitDate *time.Time            `json:"expected_exit_date"`
	AnalystScore     int                   `json:"analyst_score"`
	Notes            string                `json:"notes"`
	Strategies       []StrategyRef         `json:"strategies"`
	FundIDs          []int64               `json:"fund_ids"`
}

// Patch lists every field an author may change on a draft. Nil means unchanged.
type Patch struct {
	TradeDirection   *models.TradeDirection `json:"trade_direction"`
	CurrentPrice     *decimal.Decimal       `json:"current_price"`
	TargetPrice      *decimal.Decimal       `json:"target_price"`
	TimeHorizon      *models.TimeHorizon    `json:"time_horizon"`
	ExpectedExitDate *time.Time             `json:"expected_exit_date"`
	AnalystScore     *int                   `json:"analyst_score"`
	Notes            *string                `json:"notes"`
	Strategies       *[]StrategyRef         `json:"strategies"`
	FundIDs          *[]int64               `json:"fund_ids"`
}

type Decision struct {
	Notes string `json:"notes"`
}

// snapshot is the audited view of a recommendation.
func snapshot(r *models.TradeRecommendation) map[string]any {
	return map[string]any{
		"security_id":        r.SecurityID,
		"trade_direction":    r.TradeDirection,
		"current_price":      r.CurrentPrice,
		"target_price":       r.TargetPrice,
		"time_horizon":       r.TimeHorizon,
		"expected_exit_date": r.ExpectedExitDate,
		"analyst_score":      r.AnalystScore,
		"notes":              r.Notes,
		"status":             r.Status,
		"is_draft":           r.IsDraft,
		"approved_by":        r.ApprovedBy,
		"approval_notes":     r.ApprovalNotes,
		"strategies":         strategyEntries(r.Strategies),
		"fund_ids":           sortedIDs(r.FundIDs()),
	}
}

// strategyEntries renders the strategy set as sorted "id" or "id:custom text" entries
// so that a change to custom text alone shows up in the diff.
func strategyEntries(rows []models.RecommendationStrategy) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.CustomStrategyText == "" {
			out = append(out, strconv.FormatInt(r.StrategyID, 10))
			continue
		}
		out = append(out, fmt.Sprintf("%d:%s", r.StrategyID, r.CustomStrategyText))
	}
	sort.Strings(out)
	return out
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupeStrategies(in []StrategyRef) []StrategyRef {
	seen := map[int64]struct{}{}
	out := make([]StrategyRef, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s.StrategyID]; ok {
			continue
		}
		seen[s.StrategyID] = struct{}{}
		out = append(out, s)
	}
	return out
}

func dedupeIDs(in []int64) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func strategyRows(refs []StrategyRef) []models.RecommendationStrategy {
	out := make([]models.RecommendationStrategy, 0, len(refs))
	for _, r := range refs {
		out = append(out, models.RecommendationStrategy{StrategyID: r.StrategyID, CustomStrategyText: r.CustomText})
	}
	return out
}

func fundRows(ids []int64) []models.RecommendationFund {
	out := make([]models.RecommendationFund, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.RecommendationFund{FundID: id})
	}
	return out
}
