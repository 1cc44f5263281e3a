// Package authapi implements the OTP sign-in provider against the account
// service's HTTP API.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"deskmate/internal/domain"
	"deskmate/internal/infra/config"
)

const (
	defaultTimeout                   = 15 * time.Second
	defaultCBMaxFailures uint32      = 5
	defaultCBTimeout                 = 30 * time.Second
	defaultCBInterval                = 60 * time.Second
)

// Client talks to the account service. All requests route through a circuit
// breaker so a dead auth backend fails fast instead of stacking timeouts.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

func NewClient(cfg config.AuthConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "authapi",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    defaultCBInterval,
		Timeout:     defaultCBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultCBMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
		logger:  logger,
	}
}

// SignInWithOTP implements domain.AuthProvider.
func (c *Client) SignInWithOTP(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	_, err := c.do(ctx, http.MethodPost, "/auth/otp", body, "")
	if err != nil {
		return domain.NewDomainError("authapi.signin", domain.ErrAuthInvalid, err.Error())
	}
	return nil
}

// VerifyOTP implements domain.AuthProvider.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*domain.AuthSession, error) {
	body := map[string]string{"email": email, "token": code}
	data, err := c.do(ctx, http.MethodPost, "/auth/verify", body, "")
	if err != nil {
		return nil, domain.NewDomainError("authapi.verify", domain.ErrAuthInvalid, err.Error())
	}

	var resp struct {
		AccessToken  string       `json:"access_token"`
		RefreshToken string       `json:"refresh_token"`
		User         *domain.User `json:"user"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, domain.NewDomainError("authapi.verify", err, "decode response")
	}
	if resp.AccessToken == "" {
		return nil, domain.NewDomainError("authapi.verify", domain.ErrAuthInvalid, "empty access token")
	}

	return &domain.AuthSession{
		Stage:        domain.StageAuthenticated,
		Email:        email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}, nil
}

// ValidateSession implements domain.AuthProvider.
func (c *Client) ValidateSession(ctx context.Context, accessToken string) (*domain.User, error) {
	data, err := c.do(ctx, http.MethodGet, "/auth/user", nil, accessToken)
	if err != nil {
		return nil, domain.NewDomainError("authapi.validate", domain.ErrAuthInvalid, err.Error())
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, domain.NewDomainError("authapi.validate", err, "decode response")
	}
	return &user, nil
}

// do performs one HTTP exchange through the breaker and returns the body.
func (c *Client) do(ctx context.Context, method, path string, body any, bearer string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var payload io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			payload = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("apikey", c.apiKey)
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(data), 200))
		}
		return data, nil
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ domain.AuthProvider = (*Client)(nil)
