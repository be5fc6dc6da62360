// Package accounts wraps the external account-issuing service.
//
// This file implements the Issuer interface against the Supabase GoTrue
// admin API.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds a single admin API call.
const DefaultHTTPTimeout = 30 * time.Second

// Opts holds configuration options for the Supabase admin client.
type Opts struct {
	BaseURL    string
	ServiceKey string
	HTTPClient *http.Client
}

// Option defines a configuration option for the Supabase admin client.
type Option func(*Opts)

// WithBaseURL sets the Supabase project URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithServiceKey sets the service-role API key.
func WithServiceKey(key string) Option {
	return func(o *Opts) { o.ServiceKey = key }
}

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// SupabaseClient issues accounts through the Supabase auth admin endpoint.
type SupabaseClient struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// NewSupabaseClient creates a new admin client, falling back to the
// SUPABASE_URL and SUPABASE_SERVICE_KEY environment variables.
func NewSupabaseClient(opts ...Option) (*SupabaseClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("SUPABASE_URL")
	}
	if cfg.ServiceKey == "" {
		cfg.ServiceKey = os.Getenv("SUPABASE_SERVICE_KEY")
	}
	slog.Debug("Supabase client config loaded", "BaseURL_set", cfg.BaseURL != "", "ServiceKey_set", cfg.ServiceKey != "")

	if cfg.BaseURL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase URL and service key must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &SupabaseClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		http:       cfg.HTTPClient,
	}, nil
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

type adminErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

// CreateAccount registers the email via POST /auth/v1/admin/users.
// Duplicate identities are classified by the structured error_code field,
// never by matching error message text.
func (c *SupabaseClient) CreateAccount(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(createUserRequest{Email: email, Password: password, EmailConfirm: true})
	if err != nil {
		return fmt.Errorf("failed to encode create user request: %w", err)
	}

	url := c.baseURL + "/auth/v1/admin/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build create user request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	slog.Debug("Supabase CreateAccount invoked", "email", email)
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Supabase CreateAccount request failed", "error", err, "email", email)
		return fmt.Errorf("account service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Info("Supabase account created", "email", email)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr adminErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	if apiErr.ErrorCode == "email_exists" || apiErr.ErrorCode == "user_already_exists" {
		slog.Info("Supabase account already exists", "email", email)
		return ErrAlreadyExists
	}

	msg := apiErr.Msg
	if msg == "" {
		msg = apiErr.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	slog.Error("Supabase CreateAccount rejected", "status", resp.StatusCode, "error_code", apiErr.ErrorCode, "email", email)
	return fmt.Errorf("account service returned status %d: %s", resp.StatusCode, msg)
}
