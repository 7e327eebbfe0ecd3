package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradeflow/internal/config"
)

type HTTPSubmitter struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewHTTPSubmitter(cfg config.CRDConfig) *HTTPSubmitter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSubmitter{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		APIKey:  strings.TrimSpace(cfg.APIKey),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Submit posts the order to {BaseURL}/orders. Any non-2xx answer is an error.
func (s *HTTPSubmitter) Submit(ctx context.Context, o Order) (Ack, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return Ack{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Ack{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return Ack{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Ack{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ack{}, fmt.Errorf("crd http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var ack Ack
	if len(bytes.TrimSpace(b)) > 0 {
		if err := json.Unmarshal(b, &ack); err != nil {
			return Ack{}, fmt.Errorf("decode crd ack: %w", err)
		}
	}
	if ack.Status == "" {
		ack.Status = "ACCEPTED"
	}
	return ack, nil
}
