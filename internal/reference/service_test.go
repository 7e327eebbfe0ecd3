package reference_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/reference"
	"tradeflow/internal/store"
	"tradeflow/internal/testutil"
)

func TestTemporarySecurityLifecycle(t *testing.T) {
	gdb := testutil.NewDB(t)
	st := store.New(gdb)
	svc := reference.NewService(st, rbac.NewResolver(st, nil, 0, nil), audit.NewRecorder(), nil)
	ctx := context.Background()
	analyst := testutil.Analyst(t, gdb, "alice")
	admin := testutil.Admin(t, gdb, "root")
	pm := testutil.PM(t, gdb, "pat")

	sec, err := svc.CreateTemporarySecurity(ctx, analyst.ID, reference.TemporarySecurity{Ticker: " newco ", Name: "NewCo"})
	require.NoError(t, err)
	assert.Equal(t, "NEWCO", sec.Ticker)
	assert.Equal(t, models.SourceTemporary, sec.SourceType)
	assert.Equal(t, "NORMAL", sec.PriorityLevel)
	assert.False(t, sec.IsResolved)

	_, err = svc.CreateTemporarySecurity(ctx, analyst.ID, reference.TemporarySecurity{Ticker: "NEWCO"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.CreateTemporarySecurity(ctx, pm.ID, reference.TemporarySecurity{Ticker: "OTHER"})
	assert.ErrorIs(t, err, apperr.ErrPermission)
	_, err = svc.CreateTemporarySecurity(ctx, analyst.ID, reference.TemporarySecurity{Ticker: "X", PriorityLevel: "urgent"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	unresolved, err := svc.Securities(ctx, pm.ID, store.SecurityFilter{UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, unresolved, 1)

	_, err = svc.ResolveSecurity(ctx, analyst.ID, sec.ID, reference.Resolution{IVPSecurityID: "IVP-1"})
	assert.ErrorIs(t, err, apperr.ErrPermission)
	_, err = svc.ResolveSecurity(ctx, admin.ID, sec.ID, reference.Resolution{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.ResolveSecurity(ctx, admin.ID, sec.ID, reference.Resolution{IVPSecurityID: "IVP-1"})
	require.NoError(t, err)
	assert.True(t, got.IsResolved)
	assert.Equal(t, "IVP-1", got.ResolvedToIVPID)
	assert.NotNil(t, got.ResolvedAt)

	_, err = svc.ResolveSecurity(ctx, admin.ID, sec.ID, reference.Resolution{IVPSecurityID: "IVP-2"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored, err := svc.Security(ctx, pm.ID, sec.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsResolved)
	assert.Equal(t, "IVP-1", stored.ResolvedToIVPID)
}

func TestSearchAndLists(t *testing.T) {
	gdb := testutil.NewDB(t)
	st := store.New(gdb)
	svc := reference.NewService(st, rbac.NewResolver(st, nil, 0, nil), audit.NewRecorder(), nil)
	ctx := context.Background()
	u := testutil.Analyst(t, gdb, "alice")
	testutil.Security(t, gdb, "AAPL")
	testutil.Security(t, gdb, "MRNA")

	found, err := svc.Securities(ctx, u.ID, store.SecurityFilter{Query: "mrn"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "MRNA", found[0].Ticker)

	funds, err := svc.Funds(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, funds, 4)

	strategies, err := svc.Strategies(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, strategies, 12)
}
