// Package accounts links prop-firm trading accounts to the journal and keeps
// their balances current through an external account-data service.
//
// The journal never talks to MT4/MT5 servers itself. It posts the account
// login to the service and stores the snapshot that comes back.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cycle-journal/internal/errors"
	"cycle-journal/internal/models"
	"cycle-journal/internal/resilience"
	"cycle-journal/internal/security"
	"cycle-journal/pkg/utils"
)

// SnapshotPath is where the account-data service serves snapshots.
const SnapshotPath = "/v1/accounts/snapshot"

// Credentials identify an account to the account-data service.
type Credentials struct {
	Firm     string `json:"firm"`
	Platform string `json:"platform"`
	Login    string `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

// CredentialsFor combines a linked account with its password.
func CredentialsFor(a models.Account, password string) Credentials {
	return Credentials{
		Firm:     a.Firm,
		Platform: string(a.Platform),
		Login:    a.Login,
		Password: password,
		Server:   a.Server,
	}
}

// Service fetches account snapshots.
type Service interface {
	Fetch(ctx context.Context, accountID string, creds Credentials) (*models.AccountSnapshot, error)
}

// ClientConfig configures the HTTP client for the account-data service.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   utils.RetryConfig
	Breaker resilience.CircuitBreakerConfig
}

// DefaultClientConfig returns a config with the default timeout, retry and
// breaker settings and no endpoint.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 30 * time.Second,
		Retry:   utils.DefaultRetryConfig(),
		Breaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// HTTPClient is the Service backed by the account-data HTTP API.
type HTTPClient struct {
	cfg      ClientConfig
	http     *http.Client
	breakers *resilience.Registry
	logger   *security.SafeLogger
}

// NewHTTPClient creates a client. A base URL is required.
func NewHTTPClient(cfg ClientConfig, logger zerolog.Logger) (*HTTPClient, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: sync.base_url is required", errors.ErrConfigInvalid)
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("%w: sync.base_url must be an http(s) URL", errors.ErrConfigInvalid)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Retry.ShouldRetry = temporary
	cfg.Breaker.IsFailure = temporary

	return &HTTPClient{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		breakers: resilience.NewRegistry(cfg.Breaker),
		logger:   security.NewSafeLogger(logger.With().Str("component", "account_client").Logger()),
	}, nil
}

// temporary reports whether err is worth retrying. Rejected credentials
// and malformed requests are not.
func temporary(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var se *errors.SyncError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// Breakers exposes the per-server circuit breaker statistics.
func (c *HTTPClient) Breakers() []resilience.CircuitBreakerStats {
	return c.breakers.Stats()
}

type snapshotResponse struct {
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	PnL      float64 `json:"pnl"`
	Currency string  `json:"currency"`
	Error    string  `json:"error"`
}

// Fetch requests a snapshot of one account, retrying temporary failures.
// Calls for a server whose circuit is open fail fast.
func (c *HTTPClient) Fetch(ctx context.Context, accountID string, creds Credentials) (*models.AccountSnapshot, error) {
	if creds.Password == "" {
		return nil, errors.NewSyncError(accountID, 0, "no password configured", errors.ErrMissingCredentials)
	}
	breaker := c.breakers.Get(breakerKey(creds))

	start := time.Now()
	snap, err := utils.RetryWithResult(ctx, c.cfg.Retry, func() (*models.AccountSnapshot, error) {
		return resilience.ExecuteWithResult(breaker, ctx, func() (*models.AccountSnapshot, error) {
			return c.fetchOnce(ctx, accountID, creds)
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = errors.NewSyncError(accountID, 0, "server "+breaker.Name()+" is unavailable", err)
	}

	event := c.logger.Debug()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.Str("account_id", accountID).
		Str("login", creds.Login).
		Str("server", creds.Server).
		Dur("duration", time.Since(start)).
		Msg("Account snapshot request")
	return snap, err
}

func breakerKey(creds Credentials) string {
	if creds.Server != "" {
		return creds.Server
	}
	return creds.Firm
}

func (c *HTTPClient) fetchOnce(ctx context.Context, accountID string, creds Credentials) (*models.AccountSnapshot, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, errors.NewSyncError(accountID, 0, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+SnapshotPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewSyncError(accountID, 0, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewSyncError(accountID, 0, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.NewSyncError(accountID, resp.StatusCode, "read response", err)
	}

	var out snapshotResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != "" {
			msg = security.MaskSensitive(out.Error)
		}
		return nil, errors.NewSyncError(accountID, resp.StatusCode, msg, nil)
	}
	if decodeErr != nil {
		return nil, errors.NewSyncError(accountID, resp.StatusCode, "malformed response", decodeErr)
	}
	if out.Error != "" {
		// the service answered but the broker refused the login
		return nil, errors.NewSyncError(accountID, http.StatusUnprocessableEntity, security.MaskSensitive(out.Error), nil)
	}

	return &models.AccountSnapshot{
		AccountID: accountID,
		Balance:   out.Balance,
		Equity:    out.Equity,
		PnL:       out.PnL,
		Currency:  out.Currency,
		SyncedAt:  time.Now(),
	}, nil
}
