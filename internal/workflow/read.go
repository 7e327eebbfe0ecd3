package workflow

import (
	"context"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
	"tradeflow/internal/store"
)

// Get returns a recommendation visible to the actor: their own, or any with
// trade.view_all_recommendations.
func (s *Service) Get(ctx context.Context, actorID, id int64) (*models.TradeRecommendation, error) {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actor, rec.AnalystID); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns recommendations matching f. Without trade.view_all_recommendations
// the list is limited to the actor's own.
func (s *Service) List(ctx context.Context, actorID int64, f store.RecommendationFilter) ([]models.TradeRecommendation, error) {
	actor, err := s.perms.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	all, err := s.perms.Has(ctx, actor, models.PermViewAllRecommendations)
	if err != nil {
		return nil, err
	}
	if !all {
		if f.AnalystID != 0 && f.AnalystID != actor.ID {
			return nil, apperr.Permission("missing permission %s", models.PermViewAllRecommendations)
		}
		f.AnalystID = actor.ID
	}
	return s.store.ListRecommendations(ctx, f)
}

func (s *Service) History(ctx context.Context, actorID, id int64) ([]models.RecommendationStatusHistory, error) {
	if _, err := s.Get(ctx, actorID, id); err != nil {
		return nil, err
	}
	return s.store.RecommendationHistory(ctx, id)
}

func (s *Service) canView(ctx context.Context, actor *models.User, analystID int64) error {
	if analystID == actor.ID {
		return nil
	}
	ok, err := s.perms.Has(ctx, actor, models.PermViewAllRecommendations)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Permission("missing permission %s", models.PermViewAllRecommendations)
	}
	return nil
}
