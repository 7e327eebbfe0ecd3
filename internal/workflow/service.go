// Package workflow implements the trade recommendation lifecycle:
// Draft, Proposed, then Approved or Rejected.
//
// Author operations check, in order: actor usable, recommendation exists, state,
// then ownership and permission. Reviewer operations check the permission before
// loading the recommendation. Permission sets are resolved before the transaction
// opens; everything else runs inside it.
package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/store"
)

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

func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (*models.TradeRecommendation, error) {
	if err := s.perms.Require(ctx, actorID, models.PermCreateRecommendation); err != nil {
		return nil, err
	}
	t := terms{
		direction:    in.TradeDirection,
		currentPrice: in.CurrentPrice,
		targetPrice:  in.TargetPrice,
		horizon:      in.TimeHorizon,
		exitDate:     in.ExpectedExitDate,
		score:        in.AnalystScore,
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	strategies := dedupeStrategies(in.Strategies)
	funds := dedupeIDs(in.FundIDs)

	rec := &models.TradeRecommendation{
		AnalystID:        actorID,
		SecurityID:       in.SecurityID,
		TradeDirection:   in.TradeDirection,
		CurrentPrice:     in.CurrentPrice,
		TargetPrice:      *in.TargetPrice,
		TimeHorizon:      in.TimeHorizon,
		ExpectedExitDate: in.ExpectedExitDate,
		AnalystScore:     in.AnalystScore,
		Notes:            in.Notes,
		Status:           models.RecDraft,
		IsDraft:          true,
		Version:          1,
		Strategies:       strategyRows(strategies),
		Funds:            fundRows(funds),
	}

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		if err := checkSecurity(ctx, tx, in.SecurityID); err != nil {
			return err
		}
		if err := checkStrategies(ctx, tx, strategies); err != nil {
			return err
		}
		if err := checkFunds(ctx, tx, funds); err != nil {
			return err
		}
		if err := tx.CreateRecommendation(ctx, rec); err != nil {
			return err
		}
		if err := s.audit.RecommendationStatus(ctx, tx, rec.ID, nil, models.RecDraft, actorID, ""); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, table, rec.ID, models.AuditCreate, audit.Diff(nil, snapshot(rec)))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recommendation created", zap.Int64("id", rec.ID), zap.Int64("analyst_id", actorID))
	return s.store.GetRecommendation(ctx, rec.ID)
}

// Update edits a draft in place. Only the fields present in p change.
func (s *Service) Update(ctx context.Context, actorID, id int64, p Patch) (*models.TradeRecommendation, error) {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	canEdit, err := s.perms.Has(ctx, actor, models.PermEditOwnDrafts)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx *store.Store) error {
		rec, err := tx.LockRecommendation(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != models.RecDraft {
			return apperr.Conflict("recommendation %d is %s, only drafts can be edited", id, rec.Status)
		}
		if rec.AnalystID != actor.ID {
			return apperr.Permission("only the author can edit recommendation %d", id)
		}
		if !canEdit {
			return apperr.Permission("missing permission %s", models.PermEditOwnDrafts)
		}

		before := snapshot(rec)
		updates, err := s.applyPatch(ctx, tx, rec, p)
		if err != nil {
			return err
		}
		changes := audit.Diff(before, snapshot(rec))
		if len(changes) == 0 {
			return nil
		}
		if err := tx.UpdateRecommendation(ctx, rec.ID, rec.Version, updates); err != nil {
			return err
		}
		if p.Strategies != nil {
			if err := tx.ReplaceRecommendationStrategies(ctx, rec.ID, rec.Strategies); err != nil {
				return err
			}
		}
		if p.FundIDs != nil {
			if err := tx.ReplaceRecommendationFunds(ctx, rec.ID, rec.Funds); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, tx, actorID, table, rec.ID, models.AuditUpdate, changes)
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetRecommendation(ctx, id)
}

// applyPatch validates p against rec, applies it to rec and returns the column updates.
func (s *Service) applyPatch(ctx context.Context, tx *store.Store, rec *models.TradeRecommendation, p Patch) (map[string]any, error) {
	t := terms{
		direction:    rec.TradeDirection,
		currentPrice: rec.CurrentPrice,
		targetPrice:  &rec.TargetPrice,
		horizon:      rec.TimeHorizon,
		exitDate:     rec.ExpectedExitDate,
		score:        rec.AnalystScore,
	}
	updates := map[string]any{}
	if p.TradeDirection != nil {
		t.direction = *p.TradeDirection
		updates["trade_direction"] = t.direction
	}
	if p.CurrentPrice != nil {
		t.currentPrice = p.CurrentPrice
		updates["current_price"] = *p.CurrentPrice
	}
	if p.TargetPrice != nil {
		t.targetPrice = p.TargetPrice
		updates["target_price"] = *p.TargetPrice
	}
	if p.TimeHorizon != nil {
		t.horizon = *p.TimeHorizon
		updates["time_horizon"] = t.horizon
	}
	if p.ExpectedExitDate != nil {
		t.exitDate = p.ExpectedExitDate
		updates["expected_exit_date"] = *p.ExpectedExitDate
	}
	if p.AnalystScore != nil {
		t.score = *p.AnalystScore
		updates["analyst_score"] = t.score
	}
	if err := t.validate(); err != nil {
		return nil, err
	}

	if p.Strategies != nil {
		refs := dedupeStrategies(*p.Strategies)
		if err := checkStrategies(ctx, tx, refs); err != nil {
			return nil, err
		}
		rec.Strategies = strategyRows(refs)
	}
	if p.FundIDs != nil {
		ids := dedupeIDs(*p.FundIDs)
		if err := checkFunds(ctx, tx, ids); err != nil {
			return nil, err
		}
		rec.Funds = fundRows(ids)
	}
	if p.Notes != nil {
		rec.Notes = *p.Notes
		updates["notes"] = rec.Notes
	}

	rec.TradeDirection = t.direction
	rec.CurrentPrice = t.currentPrice
	rec.TargetPrice = *t.targetPrice
	rec.TimeHorizon = t.horizon
	rec.ExpectedExitDate = t.exitDate
	rec.AnalystScore = t.score
	return updates, nil
}

// Submit moves a draft to Proposed. A non-nil fundIDs replaces the targeted funds;
// at least one fund must be targeted afterwards.
func (s *Service) Submit(ctx context.Context, actorID, id int64, fundIDs []int64) (*models.TradeRecommendation, error) {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx *store.Store) error {
		rec, err := tx.LockRecommendation(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != models.RecDraft {
			return apperr.Conflict("recommendation %d is %s, only drafts can be submitted", id, rec.Status)
		}
		if rec.AnalystID != actor.ID {
			return apperr.Permission("only the author can submit recommendation %d", id)
		}

		before := snapshot(rec)
		if fundIDs != nil {
			ids := dedupeIDs(fundIDs)
			if err := checkFunds(ctx, tx, ids); err != nil {
				return err
			}
			rec.Funds = fundRows(ids)
		}
		if len(rec.Funds) == 0 {
			return apperr.Validation("at least one fund must be targeted before submission")
		}
		if fundIDs != nil {
			if err := tx.ReplaceRecommendationFunds(ctx, rec.ID, rec.Funds); err != nil {
				return err
			}
		}

		rec.Status, rec.IsDraft = models.RecProposed, false
		if err := tx.UpdateRecommendation(ctx, rec.ID, rec.Version, map[string]any{
			"status":   rec.Status,
			"is_draft": rec.IsDraft,
		}); err != nil {
			return err
		}
		from := models.RecDraft
		if err := s.audit.RecommendationStatus(ctx, tx, rec.ID, &from, models.RecProposed, actorID, ""); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, table, rec.ID, models.AuditUpdate, audit.Diff(before, snapshot(rec)))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recommendation submitted", zap.Int64("id", id), zap.Int64("analyst_id", actorID))
	return s.store.GetRecommendation(ctx, id)
}

func (s *Service) Approve(ctx context.Context, actorID, id int64, d Decision) (*models.TradeRecommendation, error) {
	return s.decide(ctx, actorID, id, models.RecApproved, d)
}

func (s *Service) Reject(ctx context.Context, actorID, id int64, d Decision) (*models.TradeRecommendation, error) {
	return s.decide(ctx, actorID, id, models.RecRejected, d)
}

func (s *Service) decide(ctx context.Context, actorID, id int64, to models.RecommendationStatus, d Decision) (*models.TradeRecommendation, error) {
	if err := s.perms.Require(ctx, actorID, models.PermApproveRecommendations); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		rec, err := tx.LockRecommendation(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != models.RecProposed {
			return apperr.Conflict("recommendation %d is %s, only proposed recommendations can be reviewed", id, rec.Status)
		}

		before := snapshot(rec)
		now := s.now().UTC()
		rec.Status, rec.IsDraft = to, false
		rec.ApprovedBy, rec.ApprovedAt, rec.ApprovalNotes = &actorID, &now, d.Notes
		if err := tx.UpdateRecommendation(ctx, rec.ID, rec.Version, map[string]any{
			"status":         rec.Status,
			"is_draft":       rec.IsDraft,
			"approved_by":    actorID,
			"approved_at":    now,
			"approval_notes": d.Notes,
		}); err != nil {
			return err
		}
		from := models.RecProposed
		if err := s.audit.RecommendationStatus(ctx, tx, rec.ID, &from, to, actorID, d.Notes); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, table, rec.ID, models.AuditUpdate, audit.Diff(before, snapshot(rec)))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recommendation reviewed", zap.Int64("id", id), zap.String("status", string(to)), zap.Int64("reviewer_id", actorID))
	return s.store.GetRecommendation(ctx, id)
}

// Delete removes a draft. The author needs trade.delete_own_drafts; administrators
// may delete any draft.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	canDelete, err := s.perms.Has(ctx, actor, models.PermDeleteOwnDrafts)
	if err != nil {
		return err
	}
	isAdmin := actor.Role != nil && actor.Role.Name == models.RoleAdministrator

	err = s.store.InTx(ctx, func(tx *store.Store) error {
		rec, err := tx.LockRecommendation(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != models.RecDraft {
			return apperr.Conflict("recommendation %d is %s, only drafts can be deleted", id, rec.Status)
		}
		if !isAdmin {
			if rec.AnalystID != actor.ID {
				return apperr.Permission("only the author or an administrator can delete recommendation %d", id)
			}
			if !canDelete {
				return apperr.Permission("missing permission %s", models.PermDeleteOwnDrafts)
			}
		}
		if err := tx.DeleteRecommendation(ctx, rec.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, table, rec.ID, models.AuditDelete, nil)
	})
	if err != nil {
		return err
	}

	s.log.Info("recommendation deleted", zap.Int64("id", id), zap.Int64("actor_id", actorID))
	return nil
}
