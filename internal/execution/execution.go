// Package execution submits trade tickets to the CRD order management system.
package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradeflow/internal/config"
)

// Order is the payload sent to CRD for one ticket.
type Order struct {
	OrderID       string           `json:"order_id"`
	Ticker        string           `json:"ticker"`
	IVPSecurityID string           `json:"ivp_security_id,omitempty"`
	FundCode      string           `json:"fund_code"`
	AccountCode   string           `json:"account_code,omitempty"`
	Direction     string           `json:"direction"`
	TargetPrice   decimal.Decimal  `json:"target_price"`
	NewPosition   decimal.Decimal  `json:"new_position"`
	Allocation    *decimal.Decimal `json:"allocation_percentage,omitempty"`
	Strategies    string           `json:"strategies,omitempty"`
	TimingNotes   string           `json:"timing_notes,omitempty"`
	SubmittedBy   string           `json:"submitted_by"`
}

// Ack is CRD's synchronous acknowledgement.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Submitter interface {
	Submit(ctx context.Context, o Order) (Ack, error)
}

// New returns the submitter selected by cfg.Mode.
func New(cfg config.CRDConfig) (Submitter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "simulated":
		return SimulatedSubmitter{}, nil
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("crd base url not set")
		}
		return NewHTTPSubmitter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported crd mode %q", cfg.Mode)
	}
}

// SimulatedSubmitter accepts every order. Used in development.
type SimulatedSubmitter struct{}

func (SimulatedSubmitter) Submit(_ context.Context, o Order) (Ack, error) {
	return Ack{Status: "ACCEPTED", Message: "simulated order " + o.OrderID}, nil
}
