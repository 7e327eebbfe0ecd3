package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeflow/internal/config"
)

func TestHTTPSubmitter_Accepted(t *testing.T) {
	var got Order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"NEW","message":"queued"}`))
	}))
	defer srv.Close()

	s := NewHTTPSubmitter(config.CRDConfig{BaseURL: srv.URL + "/", APIKey: "k", Timeout: time.Second})
	ack, err := s.Submit(context.Background(), Order{OrderID: "42", Ticker: "AAPL", TargetPrice: decimal.RequireFromString("180")})
	require.NoError(t, err)
	assert.Equal(t, "NEW", ack.Status)
	assert.Equal(t, "42", got.OrderID)
	assert.True(t, got.TargetPrice.Equal(decimal.NewFromInt(180)))
}

func TestHTTPSubmitter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown fund", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewHTTPSubmitter(config.CRDConfig{BaseURL: srv.URL})
	_, err := s.Submit(context.Background(), Order{OrderID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "unknown fund")
}

func TestHTTPSubmitter_EmptyBodyAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ack, err := NewHTTPSubmitter(config.CRDConfig{BaseURL: srv.URL}).Submit(context.Background(), Order{OrderID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", ack.Status)
}

func TestNew(t *testing.T) {
	s, err := New(config.CRDConfig{Mode: "simulated"})
	require.NoError(t, err)
	assert.IsType(t, SimulatedSubmitter{}, s)

	_, err = New(config.CRDConfig{Mode: "http"})
	assert.Error(t, err)

	_, err = New(config.CRDConfig{Mode: "fax"})
	assert.Error(t, err)
}
