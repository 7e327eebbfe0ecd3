package store

import (
	"context"
	"strings"
	"time"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
)

type SecurityFilter struct {
	Query          string
	UnresolvedOnly bool
	Limit          int
}

func (s *Store) GetSecurity(ctx context.Context, id int64) (*models.Security, error) {
	var sec models.Security
	if err := s.q(ctx).First(&sec, id).Error; err != nil {
		return nil, notFound(err, "security %d not found", id)
	}
	return &sec, nil
}

func (s *Store) LockSecurity(ctx context.Context, id int64) (*models.Security, error) {
	var sec models.Security
	if err := s.forUpdate(s.q(ctx)).First(&sec, id).Error; err != nil {
		return nil, notFound(err, "security %d not found", id)
	}
	return &sec, nil
}

func (s *Store) TickerExists(ctx context.Context, ticker string) (bool, error) {
	var n int64
	err := s.q(ctx).Model(&models.Security{}).Where("ticker = ?", ticker).Count(&n).Error
	return n > 0, err
}

func (s *Store) ListSecurities(ctx context.Context, f SecurityFilter) ([]models.Security, error) {
	q := s.q(ctx).Where("is_active = ?", true).Order("ticker asc").Limit(normalizeLimit(f.Limit, 500))
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToUpper(term) + "%"
		q = q.Where("(UPPER(ticker) LIKE ? OR UPPER(name) LIKE ?)", like, like)
	}
	if f.UnresolvedOnly {
		q = q.Where("source_type = ? AND is_resolved = ?", models.SourceTemporary, false)
	}
	var out []models.Security
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateSecurity(ctx context.Context, sec *models.Security) error {
	return s.q(ctx).Create(sec).Error
}

func (s *Store) UpdateSecurity(ctx context.Context, id int64, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := s.q(ctx).Model(&models.Security{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("security %d not found", id)
	}
	return nil
}

func (s *Store) GetFund(ctx context.Context, id int64) (*models.Fund, error) {
	var f models.Fund
	if err := s.q(ctx).First(&f, id).Error; err != nil {
		return nil, notFound(err, "fund %d not found", id)
	}
	return &f, nil
}

func (s *Store) ListFunds(ctx context.Context, activeOnly bool) ([]models.Fund, error) {
	q := s.q(ctx).Order("code asc")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []models.Fund
	return out, q.Find(&out).Error
}

func (s *Store) ListStrategies(ctx context.Context, activeOnly bool) ([]models.Strategy, error) {
	q := s.q(ctx).Order("name asc")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []models.Strategy
	return out, q.Find(&out).Error
}

// StrategiesByIDs returns the strategies with the given ids keyed by id.
func (s *Store) StrategiesByIDs(ctx context.Context, ids []int64) (map[int64]models.Strategy, error) {
	out := make(map[int64]models.Strategy, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Strategy
	if err := s.q(ctx).Where("id IN ?", uniqueIDs(ids)).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// MissingStrategyIDs returns the ids that do not name an existing strategy.
func (s *Store) MissingStrategyIDs(ctx context.Context, ids []int64) ([]int64, error) {
	found, err := s.StrategiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []int64
	for _, id := range uniqueIDs(ids) {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// MissingFundIDs returns the ids that do not name an existing fund.
func (s *Store) MissingFundIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var existing []int64
	if err := s.q(ctx).Model(&models.Fund{}).Where("id IN ?", uniqueIDs(ids)).Pluck("id", &existing).Error; err != nil {
		return nil, err
	}
	have := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}
	var missing []int64
	for _, id := range uniqueIDs(ids) {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
