package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tradeflow/internal/audit"
	"tradeflow/internal/auth"
	"tradeflow/internal/cache"
	"tradeflow/internal/execution"
	httpserver "tradeflow/internal/http"
	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/reference"
	"tradeflow/internal/store"
	"tradeflow/internal/testutil"
	"tradeflow/internal/tickets"
	"tradeflow/internal/users"
	"tradeflow/internal/workflow"
)

type server struct {
	t   *testing.T
	db  *gorm.DB
	jwt auth.JWT
	h   http.Handler
}

func newServer(t *testing.T) *server {
	gin.SetMode(gin.TestMode)
	gdb := testutil.NewDB(t)
	st := store.New(gdb)
	res := rbac.NewResolver(st, cache.NewMemoryStore(), time.Minute, nil)
	rec := audit.NewRecorder()
	j := auth.JWT{Secret: []byte("router-test"), Issuer: "tradeflow", TokenTTL: time.Hour}

	r := httpserver.NewRouter(httpserver.Deps{
		Store:           st,
		Resolver:        res,
		JWT:             j,
		Recommendations: workflow.NewService(st, res, rec, nil),
		Tickets:         tickets.NewService(st, res, rec, execution.SimulatedSubmitter{}, nil),
		Reference:       reference.NewService(st, res, rec, nil),
		Users:           users.NewService(st, res, rec, nil),
		DevLogin:        true,
	})
	return &server{t: t, db: gdb, jwt: j, h: r}
}

func (s *server) token(u *models.User) string {
	tok, _, err := s.jwt.Sign(auth.Claims{UserID: u.ID, Email: u.Email})
	require.NoError(s.t, err)
	return tok
}

func (s *server) do(method, path, token string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type recBody struct {
	Recommendation models.TradeRecommendation `json:"recommendation"`
}

type ticketBody struct {
	Ticket models.TradeTicket `json:"ticket"`
}

func TestHealthAndAuth(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/me", "", nil, nil))

	ana := testutil.Analyst(t, s.db, "alice")
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"okta_id": "okta-alice"}, &login))
	assert.Equal(t, ana.ID, login.User.ID)

	var me struct {
		User        models.User `json:"user"`
		Permissions []string    `json:"permissions"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/me", login.Token, nil, &me))
	assert.Equal(t, ana.ID, me.User.ID)
	assert.Contains(t, me.Permissions, models.PermCreateRecommendation)
	assert.NotContains(t, me.Permissions, models.PermApproveRecommendations)

	var e errorBody
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"okta_id": "okta-nobody"}, &e))
	assert.Equal(t, "permission_denied", e.Error)
}

func TestRecommendationToFill(t *testing.T) {
	s := newServer(t)
	ana := s.token(testutil.Analyst(t, s.db, "alice"))
	pm := s.token(testutil.PM(t, s.db, "paula"))
	sec := testutil.Security(t, s.db, "AAPL")
	wwh := testutil.FundID(t, s.db, "WWH")

	var created recBody
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/recommendations", ana, gin.H{
		"security_id":     sec.ID,
		"trade_direction": "Buy",
		"target_price":    "180.00",
		"time_horizon":    "Short Term",
		"analyst_score":   8,
	}, &created))
	recID := created.Recommendation.ID
	assert.Equal(t, models.RecDraft, created.Recommendation.Status)
	base := fmt.Sprintf("/api/v1/recommendations/%d", recID)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/submit", ana, nil, &e))
	assert.Equal(t, "validation_error", e.Error)

	var got recBody
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/submit", ana, gin.H{"fund_ids": []int64{wwh}}, &got))
	assert.Equal(t, models.RecProposed, got.Recommendation.Status)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, base+"/approve", ana, nil, &e))
	assert.Equal(t, "permission_denied", e.Error)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/approve", pm, gin.H{"notes": "go"}, &got))
	assert.Equal(t, models.RecApproved, got.Recommendation.Status)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, base+"/approve", pm, nil, &e))
	assert.Equal(t, "state_conflict", e.Error)

	var hist struct {
		History []models.RecommendationStatusHistory `json:"history"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, base+"/history", ana, nil, &hist))
	assert.Len(t, hist.History, 3)

	var batch struct {
		Tickets []models.TradeTicket `json:"tickets"`
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, base+"/tickets", pm, gin.H{
		"tickets": []gin.H{{"fund_id": wwh, "new_position": "1000"}},
	}, &batch))
	require.Len(t, batch.Tickets, 1)
	ticketPath := fmt.Sprintf("/api/v1/tickets/%d", batch.Tickets[0].ID)

	var tk ticketBody
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, ticketPath+"/submit", pm, nil, &tk))
	assert.Equal(t, models.TicketSubmitted, tk.Ticket.Status)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, ticketPath+"/fill", pm, gin.H{
		"price":    "181.50",
		"quantity": "1000",
	}, &tk))
	assert.Equal(t, models.TicketFilled, tk.Ticket.Status)
	require.NotNil(t, tk.Ticket.FillPrice)
	assert.True(t, tk.Ticket.FillPrice.Equal(testutil.Dec("181.50")))
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	ana := s.token(testutil.Analyst(t, s.db, "alice"))

	var e errorBody
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/recommendations/999", ana, nil, &e))
	assert.Equal(t, "not_found", e.Error)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/recommendations/abc", ana, nil, &e))
	assert.Equal(t, "validation_error", e.Error)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/recommendations", ana, gin.H{
		"security_id":     1,
		"trade_direction": "Sideways",
		"target_price":    "10",
		"time_horizon":    "Trade",
		"analyst_score":   5,
	}, &e))
	assert.Equal(t, "validation_error", e.Error)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/audit", ana, nil, &e))
	assert.Equal(t, "permission_denied", e.Error)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", ana, nil, &e))
}

func TestAdminSurface(t *testing.T) {
	s := newServer(t)
	admin := s.token(testutil.Admin(t, s.db, "root"))
	ana := testutil.Analyst(t, s.db, "alice")

	var created struct {
		Override models.UserPermission `json:"override"`
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, fmt.Sprintf("/api/v1/users/%d/overrides", ana.ID), admin, gin.H{
		"permission_key": models.PermApproveRecommendations,
		"is_granted":     true,
		"reason":         "cover",
	}, &created))

	var me struct {
		Permissions []string `json:"permissions"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/me", s.token(ana), nil, &me))
	assert.Contains(t, me.Permissions, models.PermApproveRecommendations)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, fmt.Sprintf("/api/v1/overrides/%d", created.Override.ID), admin, nil, nil))

	var page struct {
		Logs       []models.AuditTrail `json:"logs"`
		NextCursor *int64              `json:"next_cursor"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/audit?table=user_permissions&limit=100", admin, nil, &page))
	assert.NotEmpty(t, page.Logs)
	assert.Nil(t, page.NextCursor)

	var roles struct {
		Roles []models.Role `json:"roles"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/roles", admin, nil, &roles))
	assert.Len(t, roles.Roles, 3)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, fmt.Sprintf("/api/v1/users/%d/deactivate", ana.ID), admin, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/me", s.token(ana), nil, nil))
}
