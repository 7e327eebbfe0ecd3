package tickets_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/execution"
	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/store"
	"tradeflow/internal/testutil"
	"tradeflow/internal/tickets"
	"tradeflow/internal/workflow"
)

type fakeCRD struct {
	mu       sync.Mutex
	err      error
	orders   []execution.Order
	inFlight func()
}

func (f *fakeCRD) Submit(_ context.Context, o execution.Order) (execution.Ack, error) {
	if f.inFlight != nil {
		f.inFlight()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	if f.err != nil {
		return execution.Ack{}, f.err
	}
	return execution.Ack{Status: "NEW"}, nil
}

type env struct {
	db      *gorm.DB
	recs    *workflow.Service
	svc     *tickets.Service
	crd     *fakeCRD
	analyst *models.User
	pm      *models.User
	sec     *models.Security
	wwh     int64
	opm     int64
}

func setup(t *testing.T) env {
	t.Helper()
	gdb := testutil.NewDB(t)
	st := store.New(gdb)
	res := rbac.NewResolver(st, nil, 0, nil)
	rec := audit.NewRecorder()
	crd := &fakeCRD{}
	return env{
		db:      gdb,
		recs:    workflow.NewService(st, res, rec, nil),
		svc:     tickets.NewService(st, res, rec, crd, nil),
		crd:     crd,
		analyst: testutil.Analyst(t, gdb, "alice"),
		pm:      testutil.PM(t, gdb, "pat"),
		sec:     testutil.Security(t, gdb, "AAPL"),
		wwh:     testutil.FundID(t, gdb, "WWH"),
		opm:     testutil.FundID(t, gdb, "OPM"),
	}
}

func decp(s string) *decimal.Decimal {
	d := testutil.Dec(s)
	return &d
}

func (e env) approved(t *testing.T) *models.TradeRecommendation {
	t.Helper()
	ctx := context.Background()
	rec, err := e.recs.Create(ctx, e.analyst.ID, workflow.CreateInput{
		SecurityID:     e.sec.ID,
		TradeDirection: models.DirectionBuy,
		TargetPrice:    decp("180.00"),
		TimeHorizon:    models.HorizonShortTerm,
		AnalystScore:   8,
		Strategies:     []workflow.StrategyRef{{StrategyID: testutil.StrategyID(t, e.db, "Valuation")}},
	})
	require.NoError(t, err)
	_, err = e.recs.Submit(ctx, e.analyst.ID, rec.ID, []int64{e.wwh})
	require.NoError(t, err)
	rec, err = e.recs.Approve(ctx, e.pm.ID, rec.ID, workflow.Decision{})
	require.NoError(t, err)
	return rec
}

func (e env) ticket(t *testing.T) *models.TradeTicket {
	t.Helper()
	rec := e.approved(t)
	out, err := e.svc.Create(context.Background(), e.pm.ID, rec.ID, []tickets.Input{{FundID: e.wwh, NewPosition: testutil.Dec("1000")}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return &out[0]
}

func TestScenario_RecommendationToFill(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	rec, err := e.recs.Create(ctx, e.analyst.ID, workflow.CreateInput{
		SecurityID:     e.sec.ID,
		TradeDirection: models.DirectionBuy,
		TargetPrice:    decp("180.00"),
		TimeHorizon:    models.HorizonShortTerm,
		AnalystScore:   8,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RecDraft, rec.Status)
	assert.True(t, rec.IsDraft)

	rec, err = e.recs.Submit(ctx, e.analyst.ID, rec.ID, []int64{e.wwh})
	require.NoError(t, err)
	assert.Equal(t, models.RecProposed, rec.Status)

	rec, err = e.recs.Approve(ctx, e.pm.ID, rec.ID, workflow.Decision{})
	require.NoError(t, err)
	assert.Equal(t, models.RecApproved, rec.Status)
	assert.Equal(t, e.pm.ID, *rec.ApprovedBy)

	hist, err := e.recs.History(ctx, e.pm.ID, rec.ID)
	require.NoError(t, err)
	var approvals int
	for _, h := range hist {
		if h.NewStatus == models.RecApproved {
			approvals++
			assert.Equal(t, models.RecProposed, *h.OldStatus)
		}
	}
	assert.Equal(t, 1, approvals)

	created, err := e.svc.Create(ctx, e.pm.ID, rec.ID, []tickets.Input{{FundID: e.wwh}})
	require.NoError(t, err)
	tk := created[0]
	assert.Equal(t, models.TicketDraft, tk.Status)
	assert.True(t, tk.TargetPrice.Equal(testutil.Dec("180")))

	got, err := e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSubmitted, got.Status)
	require.NotNil(t, got.SubmittedToCRDAt)
	require.NotNil(t, got.CRDOrderID)

	_, err = e.svc.Submit(ctx, e.pm.ID, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err = e.svc.ReportFill(ctx, e.pm.ID, tk.ID, tickets.Fill{Price: testutil.Dec("181.50"), Quantity: testutil.Dec("1000")})
	require.NoError(t, err)
	assert.Equal(t, models.TicketFilled, got.Status)
	assert.True(t, got.FillPrice.Equal(testutil.Dec("181.5")))
	assert.True(t, got.FillQuantity.Equal(testutil.Dec("1000")))
	assert.NotNil(t, got.FilledAt)
}

func TestCreate_RequiresApprovedRecommendation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	rec, err := e.recs.Create(ctx, e.analyst.ID, workflow.CreateInput{
		SecurityID: e.sec.ID, TradeDirection: models.DirectionSell, TargetPrice: decp("10"),
		TimeHorizon: models.HorizonTrade, AnalystScore: 5,
	})
	require.NoError(t, err)

	_, err = e.svc.Create(ctx, e.pm.ID, rec.ID, []tickets.Input{{FundID: e.wwh}})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreate_Guards(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	rec := e.approved(t)

	_, err := e.svc.Create(ctx, e.analyst.ID, rec.ID, []tickets.Input{{FundID: e.wwh}})
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = e.svc.Create(ctx, e.pm.ID, rec.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.Create(ctx, e.pm.ID, rec.ID, []tickets.Input{{FundID: e.wwh}, {FundID: e.wwh}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.Create(ctx, e.pm.ID, rec.ID, []tickets.Input{{FundID: 9999}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.Create(ctx, e.pm.ID, 9999, []tickets.Input{{FundID: e.wwh}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate_FundOutsideRecommendationAllowed(t *testing.T) {
	e := setup(t)
	rec := e.approved(t)

	out, err := e.svc.Create(context.Background(), e.pm.ID, rec.ID, []tickets.Input{
		{FundID: e.wwh},
		{FundID: e.opm, TargetPrice: decp("175"), AccountCode: "ACC-1"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[1].TargetPrice.Equal(testutil.Dec("175")))
	assert.Equal(t, "Valuation", out[0].StrategiesForCRD)
	assert.Equal(t, models.DirectionBuy, out[1].TradeDirection)
}

func TestCreate_OneTicketPerFund(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	rec := e.approved(t)

	_, err := e.svc.Create(ctx, e.pm.ID, rec.ID, []tickets.Input{{FundID: e.wwh}})
	require.NoError(t, err)

	_, err = e.svc.Create(ctx, e.pm.ID, rec.ID, []tickets.Input{{FundID: e.opm}, {FundID: e.wwh}})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	list, err := e.svc.ListByRecommendation(ctx, e.pm.ID, rec.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "batch is all or nothing")
}

func TestUpdate_DraftOnly(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.ticket(t)
	notes := "work it over the close"

	got, err := e.svc.Update(ctx, e.pm.ID, tk.ID, tickets.Patch{TimingNotes: &notes, NewPosition: decp("1500")})
	require.NoError(t, err)
	assert.Equal(t, notes, got.TimingNotes)
	assert.True(t, got.NewPosition.Equal(testutil.Dec("1500")))

	_, err = e.svc.Update(ctx, e.pm.ID, tk.ID, tickets.Patch{AllocationPercentage: decp("120")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	_, err = e.svc.Update(ctx, e.pm.ID, tk.ID, tickets.Patch{TimingNotes: &notes})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSubmit_ExternalFailureBecomesError(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.ticket(t)
	e.crd.err = errors.New("connection refused")

	got, err := e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketError, got.Status)
	assert.Contains(t, got.CRDErrorMessage, "connection refused")
	assert.Nil(t, got.SubmittedToCRDAt)

	e.crd.err = nil
	got, err = e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSubmitted, got.Status)
	assert.Empty(t, got.CRDErrorMessage)
	assert.Len(t, e.crd.orders, 2)
	assert.Equal(t, "AAPL", e.crd.orders[1].Ticker)

	hist, err := e.svc.History(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, models.TicketError, hist[1].NewStatus)
	assert.Equal(t, models.TicketSubmitted, hist[2].NewStatus)
}

func TestResubmitAfterReportedError_KeepsFirstSubmissionTime(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.ticket(t)

	first, err := e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)

	got, err := e.svc.ReportError(ctx, e.pm.ID, tk.ID, tickets.Report{Message: "venue closed"})
	require.NoError(t, err)
	assert.Equal(t, models.TicketError, got.Status)
	assert.Equal(t, "venue closed", got.CRDErrorMessage)

	time.Sleep(10 * time.Millisecond)
	got, err = e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSubmitted, got.Status)
	assert.True(t, first.SubmittedToCRDAt.Equal(*got.SubmittedToCRDAt))
	assert.Equal(t, *first.CRDOrderID, *got.CRDOrderID)
}

func TestReports_RequireSubmitted(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.ticket(t)
	fill := tickets.Fill{Price: testutil.Dec("1"), Quantity: testutil.Dec("1")}

	_, err := e.svc.ReportFill(ctx, e.pm.ID, tk.ID, fill)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = e.svc.ReportRejection(ctx, e.pm.ID, tk.ID, tickets.Report{Message: "no"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)

	_, err = e.svc.ReportFill(ctx, e.analyst.ID, tk.ID, fill)
	assert.ErrorIs(t, err, apperr.ErrPermission)
	_, err = e.svc.ReportFill(ctx, e.pm.ID, tk.ID, tickets.Fill{Price: testutil.Dec("0"), Quantity: testutil.Dec("1")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := e.svc.ReportRejection(ctx, e.pm.ID, tk.ID, tickets.Report{Message: "restricted list"})
	require.NoError(t, err)
	assert.Equal(t, models.TicketRejected, got.Status)
	assert.Equal(t, "REJECTED", got.CRDStatus)

	_, err = e.svc.Submit(ctx, e.pm.ID, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = e.svc.ReportFill(ctx, e.pm.ID, tk.ID, fill)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSubmit_RequiresPermission(t *testing.T) {
	e := setup(t)
	tk := e.ticket(t)
	_, err := e.svc.Submit(context.Background(), e.analyst.ID, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)
	assert.Empty(t, e.crd.orders)
}

func TestRead_Visibility(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.ticket(t)

	_, err := e.svc.Get(ctx, e.analyst.ID, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	got, err := e.svc.Get(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Fund)
	assert.Equal(t, "WWH", got.Fund.Code)

	_, err = e.svc.Get(ctx, e.pm.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubmit_CRDCallRunsOutsideTransaction(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.ticket(t)
	other := e.ticket(t)

	var (
		resubmitErr error
		editErr     error
		seen        *models.TradeTicket
		otherErr    error
	)
	notes := "late edit"
	e.crd.inFlight = func() {
		e.crd.inFlight = nil
		_, resubmitErr = e.svc.Submit(ctx, e.pm.ID, tk.ID)
		_, editErr = e.svc.Update(ctx, e.pm.ID, tk.ID, tickets.Patch{TimingNotes: &notes})
		seen, _ = e.svc.Get(ctx, e.pm.ID, tk.ID)
		_, otherErr = e.svc.Update(ctx, e.pm.ID, other.ID, tickets.Patch{TimingNotes: &notes})
	}

	got, err := e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSubmitted, got.Status)
	assert.Equal(t, "NEW", got.CRDStatus)

	assert.ErrorIs(t, resubmitErr, apperr.ErrConflict)
	assert.ErrorIs(t, editErr, apperr.ErrConflict)
	require.NotNil(t, seen)
	assert.Equal(t, models.TicketDraft, seen.Status)
	assert.Equal(t, "PENDING", seen.CRDStatus)
	assert.NoError(t, otherErr)
	assert.Len(t, e.crd.orders, 1)

	hist, err := e.svc.History(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, models.TicketSubmitted, hist[1].NewStatus)
}

func TestSubmit_PendingReservation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tk := e.ticket(t)

	require.NoError(t, e.db.Model(&models.TradeTicket{}).Where("id = ?", tk.ID).
		Updates(map[string]any{"crd_status": "PENDING", "updated_at": time.Now().UTC()}).Error)
	_, err := e.svc.Submit(ctx, e.pm.ID, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Empty(t, e.crd.orders)

	require.NoError(t, e.db.Model(&models.TradeTicket{}).Where("id = ?", tk.ID).
		Update("updated_at", time.Now().Add(-time.Hour).UTC()).Error)
	got, err := e.svc.Submit(ctx, e.pm.ID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSubmitted, got.Status)
	assert.Len(t, e.crd.orders, 1)
}
