package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
)

type RecommendationFilter struct {
	AnalystID  int64
	SecurityID int64
	Status     models.RecommendationStatus
	DraftOnly  bool
	AfterID    int64
	Limit      int
}

func (s *Store) CreateRecommendation(ctx context.Context, rec *models.TradeRecommendation) error {
	if err := s.q(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return err
	}
	if err := s.insertStrategies(ctx, rec.ID, rec.Strategies); err != nil {
		return err
	}
	return s.insertFunds(ctx, rec.ID, rec.Funds)
}

func (s *Store) GetRecommendation(ctx context.Context, id int64) (*models.TradeRecommendation, error) {
	var rec models.TradeRecommendation
	err := s.q(ctx).
		Preload("Security").
		Preload("Strategies", orderByID).
		Preload("Strategies.Strategy").
		Preload("Funds", orderByID).
		Preload("Funds.Fund").
		First(&rec, id).Error
	if err != nil {
		return nil, notFound(err, "recommendation %d not found", id)
	}
	return &rec, nil
}

// LockRecommendation reads the row under a write lock and then loads its associations.
func (s *Store) LockRecommendation(ctx context.Context, id int64) (*models.TradeRecommendation, error) {
	var rec models.TradeRecommendation
	if err := s.forUpdate(s.q(ctx)).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "recommendation %d not found", id)
	}
	return s.GetRecommendation(ctx, id)
}

// UpdateRecommendation applies updates only if the row still carries version, and bumps it.
func (s *Store) UpdateRecommendation(ctx context.Context, id, version int64, updates map[string]any) error {
	updates["version"] = version + 1
	updates["updated_at"] = time.Now().UTC()
	res := s.q(ctx).Model(&models.TradeRecommendation{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("recommendation %d was modified concurrently", id)
	}
	return nil
}

func (s *Store) ReplaceRecommendationStrategies(ctx context.Context, recID int64, items []models.RecommendationStrategy) error {
	if err := s.q(ctx).Where("recommendation_id = ?", recID).Delete(&models.RecommendationStrategy{}).Error; err != nil {
		return err
	}
	return s.insertStrategies(ctx, recID, items)
}

func (s *Store) ReplaceRecommendationFunds(ctx context.Context, recID int64, items []models.RecommendationFund) error {
	if err := s.q(ctx).Where("recommendation_id = ?", recID).Delete(&models.RecommendationFund{}).Error; err != nil {
		return err
	}
	return s.insertFunds(ctx, recID, items)
}

// DeleteRecommendation removes junction rows first, then the recommendation itself.
func (s *Store) DeleteRecommendation(ctx context.Context, id int64) error {
	if err := s.q(ctx).Where("recommendation_id = ?", id).Delete(&models.RecommendationStrategy{}).Error; err != nil {
		return err
	}
	if err := s.q(ctx).Where("recommendation_id = ?", id).Delete(&models.RecommendationFund{}).Error; err != nil {
		return err
	}
	res := s.q(ctx).Delete(&models.TradeRecommendation{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("recommendation %d not found", id)
	}
	return nil
}

// ListRecommendations pages by descending id; AfterID is the last id of the previous page.
func (s *Store) ListRecommendations(ctx context.Context, f RecommendationFilter) ([]models.TradeRecommendation, error) {
	q := s.q(ctx).
		Preload("Security").
		Preload("Strategies", orderByID).
		Preload("Strategies.Strategy").
		Preload("Funds", orderByID).
		Preload("Funds.Fund").
		Order("id desc").
		Limit(normalizeLimit(f.Limit, 200))
	if f.AnalystID > 0 {
		q = q.Where("analyst_id = ?", f.AnalystID)
	}
	if f.SecurityID > 0 {
		q = q.Where("security_id = ?", f.SecurityID)
	}
	if f.DraftOnly {
		q = q.Where("is_draft = ?", true)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AfterID > 0 {
		q = q.Where("id < ?", f.AfterID)
	}
	var out []models.TradeRecommendation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) insertStrategies(ctx context.Context, recID int64, items []models.RecommendationStrategy) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.RecommendationStrategy, 0, len(items))
	for _, it := range items {
		rows = append(rows, models.RecommendationStrategy{
			RecommendationID:   recID,
			StrategyID:         it.StrategyID,
			CustomStrategyText: it.CustomStrategyText,
		})
	}
	return s.q(ctx).Create(&rows).Error
}

func (s *Store) insertFunds(ctx context.Context, recID int64, items []models.RecommendationFund) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.RecommendationFund, 0, len(items))
	for _, it := range items {
		rows = append(rows, models.RecommendationFund{RecommendationID: recID, FundID: it.FundID})
	}
	return s.q(ctx).Create(&rows).Error
}
