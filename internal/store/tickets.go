package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
)

func (s *Store) CreateTicket(ctx context.Context, t *models.TradeTicket) error {
	return s.q(ctx).Omit(clause.Associations).Create(t).Error
}

func (s *Store) GetTicket(ctx context.Context, id int64) (*models.TradeTicket, error) {
	var t models.TradeTicket
	if err := s.q(ctx).Preload("Fund").First(&t, id).Error; err != nil {
		return nil, notFound(err, "trade ticket %d not found", id)
	}
	return &t, nil
}

func (s *Store) LockTicket(ctx context.Context, id int64) (*models.TradeTicket, error) {
	var t models.TradeTicket
	if err := s.forUpdate(s.q(ctx)).First(&t, id).Error; err != nil {
		return nil, notFound(err, "trade ticket %d not found", id)
	}
	return &t, nil
}

// UpdateTicket applies updates only if the row still carries version, and bumps it.
func (s *Store) UpdateTicket(ctx context.Context, id, version int64, updates map[string]any) error {
	updates["version"] = version + 1
	updates["updated_at"] = time.Now().UTC()
	res := s.q(ctx).Model(&models.TradeTicket{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("trade ticket %d was modified concurrently", id)
	}
	return nil
}

func (s *Store) TicketsByRecommendation(ctx context.Context, recID int64) ([]models.TradeTicket, error) {
	var out []models.TradeTicket
	err := s.q(ctx).Preload("Fund").
		Where("recommendation_id = ?", recID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

func (s *Store) TicketExistsForFund(ctx context.Context, recID, fundID int64) (bool, error) {
	var n int64
	err := s.q(ctx).Model(&models.TradeTicket{}).
		Where("recommendation_id = ? AND fund_id = ?", recID, fundID).
		Count(&n).Error
	return n > 0, err
}
