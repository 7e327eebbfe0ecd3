package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"tradeflow/internal/models"
)

type AuditFilter struct {
	Table    string
	RecordID int64
	UserID   int64
	Query    string
	AfterID  int64
	Limit    int
}

func orderByID(db *gorm.DB) *gorm.DB { return db.Order("id asc") }

func (s *Store) InsertRecommendationHistory(ctx context.Context, h *models.RecommendationStatusHistory) error {
	return s.q(ctx).Create(h).Error
}

func (s *Store) InsertTicketHistory(ctx context.Context, h *models.TradeTicketStatusHistory) error {
	return s.q(ctx).Create(h).Error
}

func (s *Store) InsertAudit(ctx context.Context, rows []models.AuditTrail) error {
	if len(rows) == 0 {
		return nil
	}
	return s.q(ctx).Create(&rows).Error
}

func (s *Store) RecommendationHistory(ctx context.Context, recID int64) ([]models.RecommendationStatusHistory, error) {
	var out []models.RecommendationStatusHistory
	err := s.q(ctx).Where("recommendation_id = ?", recID).Order("changed_at asc, id asc").Find(&out).Error
	return out, err
}

func (s *Store) TicketHistory(ctx context.Context, ticketID int64) ([]models.TradeTicketStatusHistory, error) {
	var out []models.TradeTicketStatusHistory
	err := s.q(ctx).Where("trade_ticket_id = ?", ticketID).Order("changed_at asc, id asc").Find(&out).Error
	return out, err
}

// ListAudit pages audit rows newest first. It fetches limit+1 rows so the caller can
// tell whether another page exists.
func (s *Store) ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditTrail, error) {
	q := s.q(ctx).Model(&models.AuditTrail{}).Order("id desc")
	if f.Table != "" {
		q = q.Where("table_name = ?", f.Table)
	}
	if f.RecordID > 0 {
		q = q.Where("record_id = ?", f.RecordID)
	}
	if f.UserID > 0 {
		q = q.Where("changed_by = ?", f.UserID)
	}
	if f.AfterID > 0 {
		q = q.Where("id < ?", f.AfterID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("(field_name LIKE ? OR action_type LIKE ? OR ip_address LIKE ?)", like, like, like)
	}
	var out []models.AuditTrail
	if err := q.Limit(normalizeLimit(f.Limit, 100) + 1).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
