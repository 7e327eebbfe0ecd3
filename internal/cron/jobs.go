package cronrunner

import (
	"context"

	"go.uber.org/zap"
)

// OverrideSweeper retires expired permission overrides.
type OverrideSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SweepOverrides returns the job that keeps is_active in step with expires_at.
// Resolution already ignores expired overrides; the sweep keeps the table honest
// for admin listings.
func SweepOverrides(s OverrideSweeper, logger *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		n, err := s.SweepExpired(ctx)
		if err != nil {
			logger.Warn("override sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("expired overrides retired", zap.Int("count", n))
		}
	}
}
