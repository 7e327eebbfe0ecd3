package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
	"tradeflow/internal/store"
)

// terms holds the validated trade terms of a recommendation.
type terms struct {
	direction    models.TradeDirection
	currentPrice *decimal.Decimal
	targetPrice  *decimal.Decimal
	horizon      models.TimeHorizon
	exitDate     *time.Time
	score        int
}

func (t terms) validate() error {
	if !t.direction.Valid() {
		return apperr.Validation("invalid trade direction %q", t.direction)
	}
	if t.targetPrice == nil {
		return apperr.Validation("target price is required")
	}
	if !t.targetPrice.IsPositive() {
		return apperr.Validation("target price must be positive")
	}
	if t.currentPrice != nil && !t.currentPrice.IsPositive() {
		return apperr.Validation("current price must be positive")
	}
	if !t.horizon.Valid() {
		return apperr.Validation("invalid time horizon %q", t.horizon)
	}
	if t.horizon == models.HorizonCustomDate && t.exitDate == nil {
		return apperr.Validation("expected exit date is required for a custom date horizon")
	}
	if t.score < models.MinAnalystScore || t.score > models.MaxAnalystScore {
		return apperr.Validation("analyst score must be between %d and %d", models.MinAnalystScore, models.MaxAnalystScore)
	}
	return nil
}

func checkSecurity(ctx context.Context, tx *store.Store, id int64) error {
	sec, err := tx.GetSecurity(ctx, id)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Validation("security %d does not exist", id)
	}
	if err != nil {
		return err
	}
	if !sec.IsActive {
		return apperr.Validation("security %s is not active", sec.Ticker)
	}
	return nil
}

func checkStrategies(ctx context.Context, tx *store.Store, refs []StrategyRef) error {
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.StrategyID)
	}
	missing, err := tx.MissingStrategyIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperr.Validation("unknown strategy ids %v", missing)
	}
	return nil
}

func checkFunds(ctx context.Context, tx *store.Store, ids []int64) error {
	missing, err := tx.MissingFundIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperr.Validation("unknown fund ids %v", missing)
	}
	return nil
}
