package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/models"
)

var testJWT = JWT{Secret: []byte("test-secret"), Issuer: "tradeflow", TokenTTL: time.Hour}

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetUser(_ context.Context, id int64) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("user %d not found", id)
	}
	return u, nil
}

func TestJWT_SignVerify(t *testing.T) {
	token, exp, err := testJWT.Sign(Claims{UserID: 7, Email: "a@example.com"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := testJWT.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.UserID)
	assert.Equal(t, "a@example.com", c.Email)
	assert.Equal(t, "tradeflow", c.Issuer)
	assert.NotEmpty(t, c.ID)
}

func TestJWT_Rejects(t *testing.T) {
	token, _, err := testJWT.Sign(Claims{UserID: 7})
	require.NoError(t, err)

	other := JWT{Secret: []byte("other"), Issuer: "tradeflow", TokenTTL: time.Hour}
	_, err = other.Verify(token)
	assert.Error(t, err)

	expired, _, err := testJWT.Sign(Claims{UserID: 7, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	require.NoError(t, err)
	_, err = testJWT.Verify(expired)
	assert.Error(t, err)

	anonymous, _, err := testJWT.Sign(Claims{})
	require.NoError(t, err)
	_, err = testJWT.Verify(anonymous)
	assert.Error(t, err)
}

func newEngine(users fakeUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware(testJWT, users), func(c *gin.Context) {
		meta := audit.RequestFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"actor":      ActorID(c),
			"request_id": meta.RequestID,
			"session_id": meta.SessionID,
			"email":      ClaimsFrom(c).Email,
		})
	})
	return r
}

func TestMiddleware(t *testing.T) {
	locked := time.Now().Add(time.Hour)
	users := fakeUsers{
		1: {ID: 1, Email: "pm@example.com", IsActive: true},
		2: {ID: 2, IsActive: false},
		3: {ID: 3, IsActive: true, LockedUntil: &locked},
	}
	r := newEngine(users)

	sign := func(id int64) string {
		tok, _, err := testJWT.Sign(Claims{UserID: id, Email: "pm@example.com"})
		require.NoError(t, err)
		return tok
	}

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+sign(1))
		req.Header.Set(RequestIDHeader, "req-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"actor":1`)
		assert.Contains(t, w.Body.String(), `"request_id":"req-1"`)
		assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
	})

	t.Run("cookie fallback generates request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: sign(1)})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("unknown user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+sign(99))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	for _, id := range []int64{2, 3} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+sign(id))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, "user %d", id)
	}
}
