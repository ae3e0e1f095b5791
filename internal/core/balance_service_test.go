package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/cache"
)

func usageServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/usage", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func balanceErr(t *testing.T, err error) *BalanceError {
	t.Helper()
	var be *BalanceError
	require.True(t, errors.As(err, &be), "expected *BalanceError, got %v", err)
	return be
}

func TestCheckOrganizationBalance_Success(t *testing.T) {
	var hits int32
	srv := usageServer(t, http.StatusOK, `{"balance_cents": 12345}`, &hits)
	svc := NewBalanceService(BalanceConfig{BaseURL: srv.URL, CacheTTL: time.Minute}, cache.NewMemoryCache(), nopLogger)

	req := models.BalanceRequest{APIKey: "sk-test", OrganizationID: "org-1"}
	resp, err := svc.CheckOrganizationBalance(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp.Balance)
	assert.Equal(t, 123.45, *resp.Balance)
	assert.Equal(t, models.BalanceStatusSuccess, resp.Status)

	// Second call is served from cache.
	_, err = svc.CheckOrganizationBalance(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCheckOrganizationBalance_RequiresCredentials(t *testing.T) {
	svc := NewBalanceService(BalanceConfig{BaseURL: "http://unused"}, nil, nopLogger)
	_, err := svc.CheckOrganizationBalance(context.Background(), models.BalanceRequest{APIKey: "sk-test"})
	be := balanceErr(t, err)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "API key and Organization ID are required", be.Message)
}

func TestCheckOrganizationBalance_UpstreamStatuses(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{http.StatusUnauthorized, "Invalid API key or Organization ID"},
		{http.StatusForbidden, "Access forbidden. Please check your credentials"},
		{http.StatusTooManyRequests, "Rate limit exceeded. Please try again later"},
		{http.StatusInternalServerError, "Anthropic API is temporarily unavailable"},
		{http.StatusBadGateway, "Anthropic API is temporarily unavailable"},
		{http.StatusServiceUnavailable, "Anthropic API is temporarily unavailable"},
		{http.StatusGatewayTimeout, "Anthropic API is temporarily unavailable"},
		{http.StatusNotFound, "API Error: 404 Not Found"},
		{http.StatusTeapot, "API Error: 418 I'm a teapot"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := usageServer(t, tt.status, `{}`, nil)
			svc := NewBalanceService(BalanceConfig{BaseURL: srv.URL}, nil, nopLogger)

			_, err := svc.CheckOrganizationBalance(context.Background(), models.BalanceRequest{APIKey: "sk-test", OrganizationID: "org"})
			be := balanceErr(t, err)
			assert.Equal(t, tt.status, be.Status)
			assert.Equal(t, tt.message, be.Message)
		})
	}
}

func TestCheckOrganizationBalance_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	svc := NewBalanceService(BalanceConfig{BaseURL: "http://" + addr, Timeout: 2 * time.Second}, nil, nopLogger)
	_, err = svc.CheckOrganizationBalance(context.Background(), models.BalanceRequest{APIKey: "sk-test", OrganizationID: "org"})
	be := balanceErr(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, be.Status)
}

func TestCheckCreditBalance(t *testing.T) {
	srv := usageServer(t, http.StatusOK, `{"available_credit": 17.5}`, nil)
	svc := NewBalanceService(BalanceConfig{BaseURL: srv.URL}, nil, nopLogger)

	resp, err := svc.CheckCreditBalance(context.Background(), models.BalanceRequest{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, 17.5, *resp.Balance)

	missing := usageServer(t, http.StatusOK, `{}`, nil)
	resp, err = NewBalanceService(BalanceConfig{BaseURL: missing.URL}, nil, nopLogger).
		CheckCreditBalance(context.Background(), models.BalanceRequest{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, float64(0), *resp.Balance)
}

func TestCheckCreditBalance_Errors(t *testing.T) {
	svc := NewBalanceService(BalanceConfig{BaseURL: "http://unused"}, nil, nopLogger)
	_, err := svc.CheckCreditBalance(context.Background(), models.BalanceRequest{})
	be := balanceErr(t, err)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "API key is required", be.Message)

	srv := usageServer(t, http.StatusUnauthorized, `{}`, nil)
	_, err = NewBalanceService(BalanceConfig{BaseURL: srv.URL}, nil, nopLogger).
		CheckCreditBalance(context.Background(), models.BalanceRequest{APIKey: "sk-test"})
	be = balanceErr(t, err)
	assert.Equal(t, http.StatusUnauthorized, be.Status)
	assert.Equal(t, "Failed to fetch balance: Unauthorized", be.Message)
}

func TestCacheKeyHidesCredentials(t *testing.T) {
	key := cacheKey(variantOrganization, models.BalanceRequest{APIKey: "sk-test", OrganizationID: "org"})
	assert.NotContains(t, key, "sk-test")
	assert.NotEqual(t, key, cacheKey(variantCredit, models.BalanceRequest{APIKey: "sk-test", OrganizationID: "org"}))
}
