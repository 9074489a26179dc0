package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type chargeRequest struct {
	PayerID uuid.UUID `json:"payer_id"`
	Amount  string    `json:"amount"`
	Method  string    `json:"method"`
}

type chargeResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// Client is an HTTP Charger. Requests are bounded by the client timeout and
// throttled client-side so bursts of group payments do not trip the
// processor's own limits.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Charger = (*Client)(nil)

// NewClient returns a client for the gateway at baseURL. rps <= 0 disables throttling.
func NewClient(baseURL string, timeout time.Duration, rps int) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = rps
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// AttemptCharge posts one charge. A 200 with success=false or a 402 is a
// *DeclinedError; anything else unexpected wraps ErrUnavailable.
func (c *Client) AttemptCharge(ctx context.Context, payerID uuid.UUID, amount decimal.Decimal, method string) (ChargeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ChargeResult{}, fmt.Errorf("%w: rate limit: %v", ErrUnavailable, err)
	}

	body, err := json.Marshal(chargeRequest{PayerID: payerID, Amount: amount.StringFixed(2), Method: method})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("marshal charge: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusPaymentRequired:
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return ChargeResult{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChargeResult{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !out.Success || resp.StatusCode == http.StatusPaymentRequired {
		return ChargeResult{}, &DeclinedError{PayerID: payerID, Amount: amount, Reason: out.Reason, Reference: out.Reference}
	}
	if out.Reference == "" {
		return ChargeResult{}, fmt.Errorf("%w: missing charge reference", ErrUnavailable)
	}
	return ChargeResult{Reference: out.Reference}, nil
}
