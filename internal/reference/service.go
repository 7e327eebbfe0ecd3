// Package reference serves securities, funds and strategies, and manages
// temporary securities until they are resolved to an IVP identifier.
package reference

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/store"
)

const securitiesTable = "securities"

var priorities = map[string]struct{}{"HIGH": {}, "NORMAL": {}, "LOW": {}}

type Service struct {
	store *store.Store
	perms *rbac.Resolver
	audit *audit.Recorder
	log   *zap.Logger
	now   func() time.Time
}

func NewService(st *store.Store, perms *rbac.Resolver, rec *audit.Recorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, perms: perms, audit: rec, log: log, now: time.Now}
}

type TemporarySecurity struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Notes         string `json:"notes"`
	PriorityLevel string `json:"priority_level"`
}

type Resolution struct {
	IVPSecurityID string `json:"ivp_security_id"`
	Notes         string `json:"notes"`
}

func (s *Service) Securities(ctx context.Context, actorID int64, f store.SecurityFilter) ([]models.Security, error) {
	if _, err := s.perms.Actor(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListSecurities(ctx, f)
}

func (s *Service) Security(ctx context.Context, actorID, id int64) (*models.Security, error) {
	if _, err := s.perms.Actor(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.GetSecurity(ctx, id)
}

func (s *Service) Funds(ctx context.Context, actorID int64) ([]models.Fund, error) {
	if _, err := s.perms.Actor(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListFunds(ctx, true)
}

func (s *Service) Strategies(ctx context.Context, actorID int64) ([]models.Strategy, error) {
	if _, err := s.perms.Actor(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListStrategies(ctx, true)
}

// CreateTemporarySecurity adds a ticker that is not yet known to IVP so analysts
// can recommend it. Analysts and system administrators may do this.
func (s *Service) CreateTemporarySecurity(ctx context.Context, actorID int64, in TemporarySecurity) (*models.Security, error) {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	canCreate, err := s.perms.Has(ctx, actor, models.PermCreateRecommendation)
	if err != nil {
		return nil, err
	}
	if !canCreate {
		if canCreate, err = s.perms.Has(ctx, actor, models.PermSystemConfig); err != nil {
			return nil, err
		}
	}
	if !canCreate {
		return nil, apperr.Permission("missing permission %s", models.PermCreateRecommendation)
	}

	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
	if ticker == "" || len(ticker) > 20 {
		return nil, apperr.Validation("ticker must be 1 to 20 characters")
	}
	priority := strings.ToUpper(strings.TrimSpace(in.PriorityLevel))
	if priority == "" {
		priority = "NORMAL"
	}
	if _, ok := priorities[priority]; !ok {
		return nil, apperr.Validation("invalid priority level %q", in.PriorityLevel)
	}

	sec := &models.Security{
		Ticker:        ticker,
		Name:          strings.TrimSpace(in.Name),
		SourceType:    models.SourceTemporary,
		IsActive:      true,
		Notes:         in.Notes,
		PriorityLevel: priority,
		CreatedBy:     &actorID,
	}
	err = s.store.InTx(ctx, func(tx *store.Store) error {
		exists, err := tx.TickerExists(ctx, ticker)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("security %s already exists", ticker)
		}
		if err := tx.CreateSecurity(ctx, sec); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, securitiesTable, sec.ID, models.AuditCreate, audit.Diff(nil, securitySnapshot(sec)))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("temporary security created", zap.String("ticker", ticker), zap.Int64("actor_id", actorID))
	return sec, nil
}

// ResolveSecurity links a temporary security to its IVP identifier.
func (s *Service) ResolveSecurity(ctx context.Context, actorID, id int64, r Resolution) (*models.Security, error) {
	if err := s.perms.Require(ctx, actorID, models.PermSystemConfig); err != nil {
		return nil, err
	}
	ivp := strings.TrimSpace(r.IVPSecurityID)
	if ivp == "" {
		return nil, apperr.Validation("ivp security id is required")
	}

	var sec *models.Security
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		var err error
		sec, err = tx.LockSecurity(ctx, id)
		if err != nil {
			return err
		}
		if sec.SourceType != models.SourceTemporary {
			return apperr.Conflict("security %s is not temporary", sec.Ticker)
		}
		if sec.IsResolved {
			return apperr.Conflict("security %s is already resolved", sec.Ticker)
		}

		before := securitySnapshot(sec)
		now := s.now().UTC()
		sec.IsResolved = true
		sec.ResolvedAt = &now
		sec.ResolvedBy = &actorID
		sec.ResolvedToIVPID = ivp
		sec.IVPSecurityID = ivp
		updates := map[string]any{
			"is_resolved":        true,
			"resolved_at":        now,
			"resolved_by":        actorID,
			"resolved_to_ivp_id": ivp,
			"ivp_security_id":    ivp,
		}
		if r.Notes != "" {
			sec.Notes = r.Notes
			updates["notes"] = r.Notes
		}
		if err := tx.UpdateSecurity(ctx, sec.ID, updates); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, securitiesTable, sec.ID, models.AuditUpdate, audit.Diff(before, securitySnapshot(sec)))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("security resolved", zap.String("ticker", sec.Ticker), zap.String("ivp_security_id", ivp))
	return sec, nil
}

func securitySnapshot(s *models.Security) map[string]any {
	return map[string]any{
		"ticker":             s.Ticker,
		"name":               s.Name,
		"source_type":        s.SourceType,
		"ivp_security_id":    s.IVPSecurityID,
		"is_active":          s.IsActive,
		"is_resolved":        s.IsResolved,
		"resolved_at":        s.ResolvedAt,
		"resolved_by":        s.ResolvedBy,
		"resolved_to_ivp_id": s.ResolvedToIVPID,
		"notes":              s.Notes,
		"priority_level":     s.PriorityLevel,
	}
}
