package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/metrics"
	"github.com/cyberkey/cyberkey-backend/internal/models"
	"github.com/cyberkey/cyberkey-backend/pkg/cache"
)

const (
	usagePath             = "/v1/usage"
	defaultBalanceTimeout = 15 * time.Second

	variantOrganization = "organization"
	variantCredit       = "credit"
)

// BalanceError is a failed lookup with the HTTP status the caller should answer with.
type BalanceError struct {
	Status  int
	Message string
	Err     error
}

func (e *BalanceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BalanceError) Unwrap() error { return e.Err }

// BalanceConfig configures the upstream usage API and the response cache.
type BalanceConfig struct {
	BaseURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

type balanceService struct {
	client *http.Client
	cfg    BalanceConfig
	cache  cache.Cache
	logger *zap.Logger
}

// NewBalanceService builds the proxy. c may be nil to disable caching.
func NewBalanceService(cfg BalanceConfig, c cache.Cache, logger *zap.Logger) BalanceService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBalanceTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &balanceService{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cache:  c,
		logger: logger,
	}
}

func balanceOK(v float64) *models.BalanceResponse {
	return &models.BalanceResponse{Balance: &v, Status: models.BalanceStatusSuccess}
}

// cacheKey never embeds the credentials themselves.
func cacheKey(variant string, req models.BalanceRequest) string {
	sum := sha256.Sum256([]byte(req.APIKey + "\x00" + req.OrganizationID))
	return "balance:" + variant + ":" + hex.EncodeToString(sum[:])
}

func (s *balanceService) cached(ctx context.Context, key string) (float64, bool) {
	if s.cache == nil {
		return 0, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Balance cache read failed", zap.Error(err))
		}
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *balanceService) store(ctx context.Context, key string, v float64) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), s.cfg.CacheTTL); err != nil {
		s.logger.Warn("Balance cache write failed", zap.Error(err))
	}
}

func (s *balanceService) fetchUsage(ctx context.Context, req models.BalanceRequest) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+usagePath, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.OrganizationID != "" {
		httpReq.Header.Set("anthropic-organization", req.OrganizationID)
	}
	return s.client.Do(httpReq)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// CheckOrganizationBalance reports balance_cents/100 for an organization.
func (s *balanceService) CheckOrganizationBalance(ctx context.Context, req models.BalanceRequest) (*models.BalanceResponse, error) {
	if req.APIKey == "" || req.OrganizationID == "" {
		return nil, &BalanceError{Status: http.StatusBadRequest, Message: "API key and Organization ID are required"}
	}

	key := cacheKey(variantOrganization, req)
	if v, ok := s.cached(ctx, key); ok {
		metrics.BalanceLookups.WithLabelValues(variantOrganization, "cache_hit").Inc()
		return balanceOK(v), nil
	}

	resp, err := s.fetchUsage(ctx, req)
	if err != nil {
		metrics.BalanceLookups.WithLabelValues(variantOrganization, "error").Inc()
		s.logger.Error("Balance check error", zap.Error(err))
		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return nil, &BalanceError{Status: http.StatusServiceUnavailable,
				Message: "Unable to connect to Anthropic API. Please check your internet connection", Err: err}
		case isNetworkError(err):
			return nil, &BalanceError{Status: http.StatusServiceUnavailable,
				Message: "Network error: Unable to reach Anthropic API. Please try again later", Err: err}
		}
		return nil, &BalanceError{Status: http.StatusInternalServerError,
			Message: "Failed to check balance. Please try again later", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.BalanceLookups.WithLabelValues(variantOrganization, "error").Inc()
		return nil, organizationStatusError(resp.StatusCode)
	}

	var body struct {
		BalanceCents float64 `json:"balance_cents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.BalanceLookups.WithLabelValues(variantOrganization, "error").Inc()
		return nil, &BalanceError{Status: http.StatusInternalServerError,
			Message: "Failed to check balance. Please try again later", Err: err}
	}

	balance := body.BalanceCents / 100
	s.store(ctx, key, balance)
	metrics.BalanceLookups.WithLabelValues(variantOrganization, "success").Inc()
	return balanceOK(balance), nil
}

func organizationStatusError(code int) *BalanceError {
	switch code {
	case http.StatusUnauthorized:
		return &BalanceError{Status: code, Message: "Invalid API key or Organization ID"}
	case http.StatusForbidden:
		return &BalanceError{Status: code, Message: "Access forbidden. Please check your credentials"}
	case http.StatusTooManyRequests:
		return &BalanceError{Status: code, Message: "Rate limit exceeded. Please try again later"}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &BalanceError{Status: code, Message: "Anthropic API is temporarily unavailable"}
	}
	return &BalanceError{Status: code, Message: fmt.Sprintf("API Error: %d %s", code, http.StatusText(code))}
}

// CheckCreditBalance reports available_credit, or 0 when the field is absent.
func (s *balanceService) CheckCreditBalance(ctx context.Context, req models.BalanceRequest) (*models.BalanceResponse, error) {
	if req.APIKey == "" {
		return nil, &BalanceError{Status: http.StatusBadRequest, Message: "API key is required"}
	}
	req.OrganizationID = ""

	key := cacheKey(variantCredit, req)
	if v, ok := s.cached(ctx, key); ok {
		metrics.BalanceLookups.WithLabelValues(variantCredit, "cache_hit").Inc()
		return balanceOK(v), nil
	}

	resp, err := s.fetchUsage(ctx, req)
	if err != nil {
		metrics.BalanceLookups.WithLabelValues(variantCredit, "error").Inc()
		s.logger.Error("Error checking balance", zap.Error(err))
		return nil, &BalanceError{Status: http.StatusInternalServerError, Message: "Failed to check balance", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.BalanceLookups.WithLabelValues(variantCredit, "error").Inc()
		return nil, &BalanceError{
			Status:  resp.StatusCode,
			Message: "Failed to fetch balance: " + http.StatusText(resp.StatusCode),
		}
	}

	var body struct {
		AvailableCredit *float64 `json:"available_credit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.BalanceLookups.WithLabelValues(variantCredit, "error").Inc()
		return nil, &BalanceError{Status: http.StatusInternalServerError, Message: "Failed to check balance", Err: err}
	}

	var balance float64
	if body.AvailableCredit != nil {
		balance = *body.AvailableCredit
	}
	s.store(ctx, key, balance)
	metrics.BalanceLookups.WithLabelValues(variantCredit, "success").Inc()
	return balanceOK(balance), nil
}
