// Package audit writes the append-only status history and field-level audit trail.
// All writes go through the caller's transaction; an error here must abort it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"tradeflow/internal/models"
	"tradeflow/internal/store"
)

// Change is one field-level difference rendered as text.
type Change struct {
	Field string
	Old   *string
	New   *string
}

type Recorder struct {
	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record writes one audit row per change. CREATE and DELETE with no changes still
// write a single row without a field name.
func (r *Recorder) Record(ctx context.Context, tx *store.Store, actorID int64, table string, recordID int64, action models.AuditAction, changes []Change) error {
	meta := RequestFrom(ctx)
	var metadata datatypes.JSON
	if meta.RequestID != "" {
		b, err := json.Marshal(map[string]string{"request_id": meta.RequestID})
		if err != nil {
			return err
		}
		metadata = datatypes.JSON(b)
	}

	now := r.now().UTC()
	base := models.AuditTrail{
		EntityTable: table,
		RecordID:    recordID,
		ActionType:  action,
		ChangedBy:   actorID,
		ChangedAt:   now,
		SessionID:   meta.SessionID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Metadata:    metadata,
	}

	if len(changes) == 0 {
		if action == models.AuditUpdate {
			return nil
		}
		changes = []Change{{}}
	}
	rows := make([]models.AuditTrail, 0, len(changes))
	for _, c := range changes {
		row := base
		row.FieldName = c.Field
		row.OldValue = c.Old
		row.NewValue = c.New
		rows = append(rows, row)
	}
	if err := tx.InsertAudit(ctx, rows); err != nil {
		return fmt.Errorf("write audit trail: %w", err)
	}
	return nil
}

func (r *Recorder) RecommendationStatus(ctx context.Context, tx *store.Store, recID int64, from *models.RecommendationStatus, to models.RecommendationStatus, actorID int64, notes string) error {
	err := tx.InsertRecommendationHistory(ctx, &models.RecommendationStatusHistory{
		RecommendationID: recID,
		OldStatus:        from,
		NewStatus:        to,
		ChangedBy:        actorID,
		Notes:            notes,
		ChangedAt:        r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("write recommendation status history: %w", err)
	}
	return nil
}

func (r *Recorder) TicketStatus(ctx context.Context, tx *store.Store, ticketID int64, from *models.TicketStatus, to models.TicketStatus, actorID int64, notes string) error {
	err := tx.InsertTicketHistory(ctx, &models.TradeTicketStatusHistory{
		TradeTicketID: ticketID,
		OldStatus:     from,
		NewStatus:     to,
		ChangedBy:     actorID,
		Notes:         notes,
		ChangedAt:     r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("write ticket status history: %w", err)
	}
	return nil
}

// Diff compares two field snapshots and returns the fields whose text differs,
// ordered by field name. A nil before produces a creation diff, a nil after a deletion diff.
func Diff(before, after map[string]any) []Change {
	fields := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		fields[k] = struct{}{}
	}
	for k := range after {
		fields[k] = struct{}{}
	}
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var out []Change
	for _, name := range names {
		o, n := Text(before[name]), Text(after[name])
		if equalText(o, n) {
			continue
		}
		out = append(out, Change{Field: name, Old: o, New: n})
	}
	return out
}

// Text renders a field value the way it is stored in the audit trail. Nil values
// and nil pointers render as nil.
func Text(v any) *string {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return Text(rv.Elem().Interface())
	}
	var s string
	switch x := v.(type) {
	case decimal.Decimal:
		s = x.String()
	case time.Time:
		s = x.UTC().Format(time.RFC3339)
	default:
		s = fmt.Sprint(x)
	}
	return &s
}

func equalText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
