// Package tickets derives fund-level trade tickets from approved recommendations
// and tracks them through CRD execution: Draft, Submitted, then Filled, Rejected or Error.
package tickets

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/execution"
	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/store"
)

type Service struct {
	store *store.Store
	perms *rbac.Resolver
	audit *audit.Recorder
	crd   execution.Submitter
	log   *zap.Logger
	now   func() time.Time
}

func NewService(st *store.Store, perms *rbac.Resolver, rec *audit.Recorder, crd execution.Submitter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, perms: perms, audit: rec, crd: crd, log: log, now: time.Now}
}

// Create opens one draft ticket per input fund. Any fund may be targeted; the
// recommendation's fund list is advisory.
func (s *Service) Create(ctx context.Context, actorID, recID int64, inputs []Input) ([]models.TradeTicket, error) {
	if err := s.perms.Require(ctx, actorID, models.PermCreateTickets); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperr.Validation("at least one fund ticket is required")
	}
	seen := map[int64]struct{}{}
	for _, in := range inputs {
		if _, dup := seen[in.FundID]; dup {
			return nil, apperr.Validation("fund %d appears more than once", in.FundID)
		}
		seen[in.FundID] = struct{}{}
		if err := validatePrice(in.TargetPrice); err != nil {
			return nil, err
		}
		if err := validateAllocation(in.AllocationPercentage); err != nil {
			return nil, err
		}
	}

	var ids []int64
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		rec, err := tx.LockRecommendation(ctx, recID)
		if err != nil {
			return err
		}
		if rec.Status != models.RecApproved {
			return apperr.Conflict("recommendation %d is %s, tickets need an approved recommendation", recID, rec.Status)
		}
		label := strategyLabel(rec)

		for _, in := range inputs {
			fund, err := tx.GetFund(ctx, in.FundID)
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.Validation("fund %d does not exist", in.FundID)
			}
			if err != nil {
				return err
			}
			if !fund.IsActive {
				return apperr.Validation("fund %s is not active", fund.Code)
			}
			exists, err := tx.TicketExistsForFund(ctx, rec.ID, fund.ID)
			if err != nil {
				return err
			}
			if exists {
				return apperr.Conflict("recommendation %d already has a ticket for fund %s", rec.ID, fund.Code)
			}

			t := &models.TradeTicket{
				RecommendationID:     rec.ID,
				CreatedBy:            actorID,
				SecurityID:           rec.SecurityID,
				FundID:               fund.ID,
				TradeDirection:       rec.TradeDirection,
				TargetPrice:          rec.TargetPrice,
				CurrentPosition:      in.CurrentPosition,
				BenchmarkPosition:    in.BenchmarkPosition,
				NewPosition:          in.NewPosition,
				AllocationPercentage: in.AllocationPercentage,
				StrategiesForCRD:     label,
				TimingNotes:          in.TimingNotes,
				AccountCode:          in.AccountCode,
				Status:               models.TicketDraft,
				Version:              1,
			}
			if in.TargetPrice != nil {
				t.TargetPrice = *in.TargetPrice
			}
			if err := tx.CreateTicket(ctx, t); err != nil {
				return err
			}
			if err := s.audit.TicketStatus(ctx, tx, t.ID, nil, models.TicketDraft, actorID, ""); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, actorID, table, t.ID, models.AuditCreate, audit.Diff(nil, snapshot(t))); err != nil {
				return err
			}
			ids = append(ids, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("trade tickets created", zap.Int64("recommendation_id", recID), zap.Int("count", len(ids)))
	out := make([]models.TradeTicket, 0, len(ids))
	for _, id := range ids {
		t, err := s.store.GetTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, actorID, id int64, p Patch) (*models.TradeTicket, error) {
	if err := s.perms.Require(ctx, actorID, models.PermCreateTickets); err != nil {
		return nil, err
	}
	if err := validatePrice(p.TargetPrice); err != nil {
		return nil, err
	}
	if err := validateAllocation(p.AllocationPercentage); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		t, err := tx.LockTicket(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != models.TicketDraft {
			return apperr.Conflict("trade ticket %d is %s, only drafts can be edited", id, t.Status)
		}
		if s.inFlight(t) {
			return apperr.Conflict("trade ticket %d has a CRD submission in flight", id)
		}

		before := snapshot(t)
		updates := map[string]any{}
		if p.TargetPrice != nil {
			t.TargetPrice = *p.TargetPrice
			updates["target_price"] = t.TargetPrice
		}
		if p.CurrentPosition != nil {
			t.CurrentPosition = *p.CurrentPosition
			updates["current_position"] = t.CurrentPosition
		}
		if p.BenchmarkPosition != nil {
			t.BenchmarkPosition = *p.BenchmarkPosition
			updates["benchmark_position"] = t.BenchmarkPosition
		}
		if p.NewPosition != nil {
			t.NewPosition = *p.NewPosition
			updates["new_position"] = t.NewPosition
		}
		if p.AllocationPercentage != nil {
			t.AllocationPercentage = p.AllocationPercentage
			updates["allocation_percentage"] = *p.AllocationPercentage
		}
		if p.TimingNotes != nil {
			t.TimingNotes = *p.TimingNotes
			updates["timing_notes"] = t.TimingNotes
		}
		if p.AccountCode != nil {
			t.AccountCode = *p.AccountCode
			updates["account_code"] = t.AccountCode
		}

		changes := audit.Diff(before, snapshot(t))
		if len(changes) == 0 {
			return nil
		}
		if err := tx.UpdateTicket(ctx, t.ID, t.Version, updates); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, table, t.ID, models.AuditUpdate, changes)
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetTicket(ctx, id)
}

// crdPending marks a ticket whose order is in flight to CRD.
const crdPending = "PENDING"

// pendingTTL is how long an in-flight submission blocks another attempt. A
// reservation older than this is treated as abandoned.
const pendingTTL = 5 * time.Minute

func (s *Service) inFlight(t *models.TradeTicket) bool {
	return t.CRDStatus == crdPending && s.now().Sub(t.UpdatedAt) < pendingTTL
}

// Submit sends a Draft or Error ticket to CRD. A CRD failure is recorded on the
// ticket as Error and is not returned as an error.
//
// The CRD call runs between two transactions: the first reserves the ticket by
// setting crd_status to PENDING, the second records the outcome if the ticket has
// not changed since. The order id is the ticket id, so a retry after a lost
// outcome reaches CRD with the same id.
func (s *Service) Submit(ctx context.Context, actorID, id int64) (*models.TradeTicket, error) {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if ok, err := s.perms.Has(ctx, actor, models.PermSubmitToCRD); err != nil {
		return nil, err
	} else if !ok {
		return nil, apperr.Permission("missing permission %s", models.PermSubmitToCRD)
	}

	var (
		order    execution.Order
		before   map[string]any
		from     models.TicketStatus
		reserved int64
	)
	err = s.store.InTx(ctx, func(tx *store.Store) error {
		t, err := tx.LockTicket(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != models.TicketDraft && t.Status != models.TicketError {
			return apperr.Conflict("trade ticket %d is %s, only draft or errored tickets can be submitted", id, t.Status)
		}
		if s.inFlight(t) {
			return apperr.Conflict("trade ticket %d already has a CRD submission in flight", id)
		}
		if order, err = s.order(ctx, tx, t, actor); err != nil {
			return err
		}
		before, from = snapshot(t), t.Status
		reserved = t.Version + 1
		return tx.UpdateTicket(ctx, t.ID, t.Version, map[string]any{"crd_status": crdPending})
	})
	if err != nil {
		return nil, err
	}

	ack, sendErr := s.crd.Submit(ctx, order)
	var crdErr error
	if sendErr != nil {
		crdErr = apperr.External(sendErr, "crd submission failed")
	}

	err = s.store.InTx(ctx, func(tx *store.Store) error {
		t, err := tx.LockTicket(ctx, id)
		if err != nil {
			return err
		}
		if t.Version != reserved || t.CRDStatus != crdPending {
			return apperr.Conflict("trade ticket %d changed while its CRD submission was in flight", id)
		}

		updates := map[string]any{}
		note := ""
		if crdErr != nil {
			t.Status = models.TicketError
			t.CRDStatus = "ERROR"
			t.CRDErrorMessage = crdErr.Error()
			updates["crd_status"] = t.CRDStatus
			updates["crd_error_message"] = t.CRDErrorMessage
			note = crdErr.Error()
		} else {
			now := s.now().UTC()
			t.Status = models.TicketSubmitted
			t.CRDStatus = ack.Status
			t.CRDErrorMessage = ""
			updates["crd_status"] = t.CRDStatus
			updates["crd_error_message"] = ""
			if t.CRDOrderID == nil {
				t.CRDOrderID = &order.OrderID
				updates["crd_order_id"] = order.OrderID
			}
			if t.SubmittedToCRDAt == nil {
				t.SubmittedToCRDAt = &now
				updates["submitted_to_crd_at"] = now
			}
		}
		return s.apply(ctx, tx, actorID, t, from, before, updates, note)
	})
	if err != nil {
		if crdErr == nil {
			s.log.Error("crd accepted order but the outcome was not recorded",
				zap.Int64("ticket_id", id), zap.String("order_id", order.OrderID), zap.Error(err))
		}
		return nil, err
	}

	if crdErr != nil {
		s.log.Warn("crd submission failed", zap.Int64("ticket_id", id), zap.Error(crdErr))
	} else {
		s.log.Info("trade ticket submitted", zap.Int64("ticket_id", id), zap.Int64("actor_id", actorID))
	}
	return s.store.GetTicket(ctx, id)
}

func (s *Service) order(ctx context.Context, tx *store.Store, t *models.TradeTicket, actor *models.User) (execution.Order, error) {
	sec, err := tx.GetSecurity(ctx, t.SecurityID)
	if err != nil {
		return execution.Order{}, err
	}
	fund, err := tx.GetFund(ctx, t.FundID)
	if err != nil {
		return execution.Order{}, err
	}
	ivp := sec.IVPSecurityID
	if sec.IsResolved {
		ivp = sec.ResolvedToIVPID
	}
	return execution.Order{
		OrderID:       strconv.FormatInt(t.ID, 10),
		Ticker:        sec.Ticker,
		IVPSecurityID: ivp,
		FundCode:      fund.Code,
		AccountCode:   t.AccountCode,
		Direction:     string(t.TradeDirection),
		TargetPrice:   t.TargetPrice,
		NewPosition:   t.NewPosition,
		Allocation:    t.AllocationPercentage,
		Strategies:    t.StrategiesForCRD,
		TimingNotes:   t.TimingNotes,
		SubmittedBy:   actor.Email,
	}, nil
}

// ReportFill records CRD's fill for a submitted ticket.
func (s *Service) ReportFill(ctx context.Context, actorID, id int64, f Fill) (*models.TradeTicket, error) {
	if err := s.perms.Require(ctx, actorID, models.PermSubmitToCRD); err != nil {
		return nil, err
	}
	if !f.Price.IsPositive() {
		return nil, apperr.Validation("fill price must be positive")
	}
	if !f.Quantity.IsPositive() {
		return nil, apperr.Validation("fill quantity must be positive")
	}
	filledAt := s.now().UTC()
	if f.FilledAt != nil {
		filledAt = f.FilledAt.UTC()
	}
	crdStatus := f.CRDStatus
	if crdStatus == "" {
		crdStatus = "FILLED"
	}

	return s.report(ctx, actorID, id, models.TicketFilled, "", func(t *models.TradeTicket) map[string]any {
		price, qty := f.Price, f.Quantity
		t.FillPrice, t.FillQuantity, t.FilledAt, t.CRDStatus = &price, &qty, &filledAt, crdStatus
		return map[string]any{
			"fill_price":    price,
			"fill_quantity": qty,
			"filled_at":     filledAt,
			"crd_status":    crdStatus,
		}
	})
}

// ReportRejection records that CRD rejected a submitted ticket.
func (s *Service) ReportRejection(ctx context.Context, actorID, id int64, r Report) (*models.TradeTicket, error) {
	return s.reportFailure(ctx, actorID, id, models.TicketRejected, "REJECTED", r)
}

// ReportError records an asynchronous CRD error on a submitted ticket. The ticket
// may then be resubmitted.
func (s *Service) ReportError(ctx context.Context, actorID, id int64, r Report) (*models.TradeTicket, error) {
	return s.reportFailure(ctx, actorID, id, models.TicketError, "ERROR", r)
}

func (s *Service) reportFailure(ctx context.Context, actorID, id int64, to models.TicketStatus, defaultStatus string, r Report) (*models.TradeTicket, error) {
	if err := s.perms.Require(ctx, actorID, models.PermSubmitToCRD); err != nil {
		return nil, err
	}
	crdStatus := r.CRDStatus
	if crdStatus == "" {
		crdStatus = defaultStatus
	}
	return s.report(ctx, actorID, id, to, r.Message, func(t *models.TradeTicket) map[string]any {
		t.CRDStatus, t.CRDErrorMessage = crdStatus, r.Message
		return map[string]any{"crd_status": crdStatus, "crd_error_message": r.Message}
	})
}

// report applies an inbound CRD transition to a Submitted ticket.
func (s *Service) report(ctx context.Context, actorID, id int64, to models.TicketStatus, note string, mutate func(*models.TradeTicket) map[string]any) (*models.TradeTicket, error) {
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		t, err := tx.LockTicket(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != models.TicketSubmitted {
			return apperr.Conflict("trade ticket %d is %s, only submitted tickets accept CRD reports", id, t.Status)
		}
		before := snapshot(t)
		updates := mutate(t)
		t.Status = to
		return s.apply(ctx, tx, actorID, t, models.TicketSubmitted, before, updates, note)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("crd report applied", zap.Int64("ticket_id", id), zap.String("status", string(to)))
	return s.store.GetTicket(ctx, id)
}

// apply writes t's new status with updates and records history and audit rows.
func (s *Service) apply(ctx context.Context, tx *store.Store, actorID int64, t *models.TradeTicket, from models.TicketStatus, before map[string]any, updates map[string]any, note string) error {
	updates["status"] = t.Status
	if err := tx.UpdateTicket(ctx, t.ID, t.Version, updates); err != nil {
		return err
	}
	if from != t.Status {
		if err := s.audit.TicketStatus(ctx, tx, t.ID, &from, t.Status, actorID, note); err != nil {
			return err
		}
	}
	return s.audit.Record(ctx, tx, actorID, table, t.ID, models.AuditUpdate, audit.Diff(before, snapshot(t)))
}
