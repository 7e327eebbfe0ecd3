package audit

import (
	"context"

	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/store"
)

type Page struct {
	Entries    []models.AuditTrail `json:"entries"`
	NextCursor *int64              `json:"next_cursor"`
}

// List pages the audit trail for holders of admin.view_audit_logs.
func List(ctx context.Context, st *store.Store, res *rbac.Resolver, actorID int64, f store.AuditFilter) (Page, error) {
	if err := res.Require(ctx, actorID, models.PermViewAuditLogs); err != nil {
		return Page{}, err
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	rows, err := st.ListAudit(ctx, f)
	if err != nil {
		return Page{}, err
	}

	page := Page{Entries: rows}
	if len(rows) > f.Limit {
		next := rows[f.Limit-1].ID
		page.Entries = rows[:f.Limit]
		page.NextCursor = &next
	}
	return page, nil
}
