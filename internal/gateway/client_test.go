package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *chargeRequest) {
	t.Helper()
	var got chargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charges", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestAttemptCharge_Success(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"success":true,"reference":"ch_123"}`)
	c := NewClient(srv.URL+"/", time.Second, 0)
	payer := uuid.New()

	res, err := c.AttemptCharge(context.Background(), payer, decimal.RequireFromString("100.5"), "CARD")
	require.NoError(t, err)
	assert.Equal(t, "ch_123", res.Reference)
	assert.Equal(t, "100.50", got.Amount)
	assert.Equal(t, payer, got.PayerID)
	assert.Equal(t, "CARD", got.Method)
}

func TestAttemptCharge_Declined(t *testing.T) {
	for _, tc := range []struct {
		status int
		body   string
	}{
		{http.StatusOK, `{"success":false,"reason":"insufficient funds"}`},
		{http.StatusPaymentRequired, `{"success":false,"reason":"card expired","reference":"ch_9"}`},
	} {
		srv, _ := newServer(t, tc.status, tc.body)
		c := NewClient(srv.URL, time.Second, 0)

		_, err := c.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(10), "CARD")
		var declined *DeclinedError
		require.ErrorAs(t, err, &declined)
		assert.NotEmpty(t, declined.Reason)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
}

func TestAttemptCharge_Unavailable(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, "upstream down")
	c := NewClient(srv.URL, time.Second, 0)
	_, err := c.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(10), "CARD")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "502")

	srv, _ = newServer(t, http.StatusOK, `not json`)
	c = NewClient(srv.URL, time.Second, 0)
	_, err = c.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(10), "CARD")
	assert.ErrorIs(t, err, ErrUnavailable)

	srv, _ = newServer(t, http.StatusOK, `{"success":true}`)
	c = NewClient(srv.URL, time.Second, 0)
	_, err = c.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(10), "CARD")
	assert.ErrorIs(t, err, ErrUnavailable)

	c = NewClient("http://127.0.0.1:1", 200*time.Millisecond, 0)
	_, err = c.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(10), "CARD")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAttemptCharge_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, 50*time.Millisecond, 0)
	_, err := c.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(10), "CARD")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAttemptCharge_RateLimitHonoursContext(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success":true,"reference":"r"}`)
	c := NewClient(srv.URL, time.Second, 1)

	_, err := c.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(1), "CARD")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.AttemptCharge(ctx, uuid.New(), decimal.NewFromInt(1), "CARD")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSimulator(t *testing.T) {
	res, err := Simulator{}.AttemptCharge(context.Background(), uuid.New(), decimal.NewFromInt(1), "CARD")
	require.NoError(t, err)
	assert.Contains(t, res.Reference, "sim_")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Simulator{}.AttemptCharge(ctx, uuid.New(), decimal.NewFromInt(1), "CARD")
	assert.ErrorIs(t, err, ErrUnavailable)
}
