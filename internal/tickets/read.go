package tickets

import (
	"context"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
)

// viewPerms grant read access to tickets.
var viewPerms = []string{
	models.PermCreateTickets,
	models.PermSubmitToCRD,
	models.PermViewAllRecommendations,
}

func (s *Service) canView(ctx context.Context, actorID int64) error {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	for _, key := range viewPerms {
		ok, err := s.perms.Has(ctx, actor, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Permission("missing permission to view trade tickets")
}

func (s *Service) Get(ctx context.Context, actorID, id int64) (*models.TradeTicket, error) {
	if err := s.canView(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.GetTicket(ctx, id)
}

func (s *Service) ListByRecommendation(ctx context.Context, actorID, recID int64) ([]models.TradeTicket, error) {
	if err := s.canView(ctx, actorID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRecommendation(ctx, recID); err != nil {
		return nil, err
	}
	return s.store.TicketsByRecommendation(ctx, recID)
}

func (s *Service) History(ctx context.Context, actorID, id int64) ([]models.TradeTicketStatusHistory, error) {
	if err := s.canView(ctx, actorID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTicket(ctx, id); err != nil {
		return nil, err
	}
	return s.store.TicketHistory(ctx, id)
}
