package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/httpclient"
	"github.com/hush-home/hushd/internal/secrets"
)

const (
	// defaultWebhookTimeout is the request timeout used when a webhook does
	// not configure its own
	defaultWebhookTimeout = 30 * time.Second

	// maxErrorBodySize limits error response body reading to prevent memory issues
	maxErrorBodySize = 1024

	// Webhook authentication type constants
	authTypeNone   = "none"
	authTypeBearer = "bearer"
	authTypeBasic  = "basic"
	authTypeCustom = "custom"
)

// WebhookProvider posts accepted notifications as JSON to one configured
// HTTP endpoint. Thread-safe for concurrent use.
type WebhookProvider struct {
	name       string
	enabled    bool
	url        string
	method     string
	timeout    time.Duration
	headers    map[string]string
	auth       WebhookAuth
	categories map[string]bool
	client     *httpclient.Client
}

// WebhookAuth holds resolved authentication credentials for webhook requests.
// All secret values are resolved at provider initialization time.
type WebhookAuth struct {
	Type   string // "none", "bearer", "basic", "custom"
	Token  string // resolved bearer token
	User   string // resolved username
	Pass   string // resolved password
	Header string // custom header name
	Value  string // resolved custom header value
}

// resolveWebhookAuth converts conf.WebhookAuthConfig to WebhookAuth with
// resolved secrets. File references and environment variables are read once,
// at initialization.
func resolveWebhookAuth(cfg *conf.WebhookAuthConfig) (WebhookAuth, error) {
	auth := WebhookAuth{
		Type: strings.ToLower(strings.TrimSpace(cfg.Type)),
	}

	// Empty or "none" type needs no resolution
	if auth.Type == "" || auth.Type == authTypeNone {
		auth.Type = authTypeNone
		return auth, nil
	}

	var err error

	switch auth.Type {
	case authTypeBearer:
		auth.Token, err = secrets.MustResolve("bearer token", cfg.TokenFile, cfg.Token)
		if err != nil {
			return WebhookAuth{}, fmt.Errorf("failed to resolve bearer token: %w", err)
		}

	case authTypeBasic:
		auth.User, err = secrets.MustResolve("basic auth user", cfg.UserFile, cfg.User)
		if err != nil {
			return WebhookAuth{}, fmt.Errorf("failed to resolve basic auth user: %w", err)
		}
		auth.Pass, err = secrets.MustResolve("basic auth pass", cfg.PassFile, cfg.Pass)
		if err != nil {
			return WebhookAuth{}, fmt.Errorf("failed to resolve basic auth pass: %w", err)
		}

	case authTypeCustom:
		auth.Header = cfg.Header // header name is not a secret
		auth.Value, err = secrets.MustResolve("custom header value", cfg.ValueFile, cfg.Value)
		if err != nil {
			return WebhookAuth{}, fmt.Errorf("failed to resolve custom header value: %w", err)
		}

	default:
		return WebhookAuth{}, fmt.Errorf("unsupported auth type: %s", auth.Type)
	}

	return auth, nil
}

// WebhookPayload is the JSON structure sent to webhook endpoints.
type WebhookPayload struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Title          string `json:"title,omitzero"`
	Message        string `json:"message"`
	EntityID       string `json:"entity_id,omitzero"`
	Timestamp      string `json:"timestamp"`
	CollapsedCount int    `json:"collapsed_count"`
}

// NewWebhookProvider builds a provider from one configured webhook. Secret
// resolution failures surface here so a broken webhook never registers.
func NewWebhookProvider(cfg *conf.WebhookConfig) (*WebhookProvider, error) {
	auth, err := resolveWebhookAuth(&cfg.Auth)
	if err != nil {
		return nil, err
	}

	wp := &WebhookProvider{
		name:       strings.TrimSpace(cfg.Name),
		enabled:    true,
		url:        strings.TrimSpace(cfg.URL),
		method:     cfg.Method,
		timeout:    defaultWebhookTimeout,
		headers:    cfg.Headers,
		auth:       auth,
		categories: categoryFilter(cfg.Categories),
	}
	if wp.name == "" {
		wp.name = "webhook"
	}
	if cfg.TimeoutSeconds > 0 {
		wp.timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.UserAgent = "hushd-webhook/1.0"
	clientCfg.DefaultTimeout = wp.timeout
	wp.client = httpclient.New(&clientCfg)

	return wp, nil
}

func (w *WebhookProvider) GetName() string { return w.name }

func (w *WebhookProvider) IsEnabled() bool { return w.enabled }

func (w *WebhookProvider) SupportsCategory(category string) bool {
	return supportsCategory(w.categories, category)
}

// ValidateConfig validates the webhook configuration. Called once during
// dispatcher construction to catch broken endpoints early.
func (w *WebhookProvider) ValidateConfig() error {
	if w.url == "" {
		return fmt.Errorf("webhook %s: URL is required", w.name)
	}

	parsed, err := url.Parse(w.url)
	if err != nil {
		return fmt.Errorf("webhook %s: invalid URL: %w", w.name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("webhook %s: URL scheme must be http or https, got %s", w.name, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("webhook %s: URL host is required", w.name)
	}

	method := strings.ToUpper(strings.TrimSpace(w.method))
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return fmt.Errorf("webhook %s: method must be POST, PUT, or PATCH, got %s", w.name, method)
	}
	w.method = method

	if err := validateResolvedWebhookAuth(&w.auth); err != nil {
		return fmt.Errorf("webhook %s: %w", w.name, err)
	}

	return nil
}

// validateResolvedWebhookAuth validates webhook authentication after secrets
// are resolved.
func validateResolvedWebhookAuth(auth *WebhookAuth) error {
	switch auth.Type {
	case authTypeNone:
		return nil
	case authTypeBearer:
		if auth.Token == "" {
			return fmt.Errorf("bearer auth requires a token")
		}
	case authTypeBasic:
		if auth.User == "" || auth.Pass == "" {
			return fmt.Errorf("basic auth requires user and pass")
		}
	case authTypeCustom:
		if auth.Header == "" {
			return fmt.Errorf("custom auth requires a header name")
		}
		if strings.ContainsAny(auth.Header, "\r\n:") {
			return fmt.Errorf("custom auth header contains invalid characters")
		}
		if auth.Value == "" {
			return fmt.Errorf("custom auth requires a value")
		}
		if strings.ContainsAny(auth.Value, "\r\n") {
			return fmt.Errorf("custom auth value contains invalid characters")
		}
	default:
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}

	return nil
}

// Send posts the notification to the configured endpoint. One attempt, the
// delivered flag on the record was already decided at save time.
func (w *WebhookProvider) Send(ctx context.Context, n *datastore.Notification) error {
	payload, err := json.Marshal(WebhookPayload{
		ID:             n.ID,
		Category:       n.Category,
		Title:          n.Title,
		Message:        n.Message,
		EntityID:       n.EntityID,
		Timestamp:      n.Timestamp,
		CollapsedCount: n.CollapsedCount,
	})
	if err != nil {
		return &deliveryError{
			Err:      fmt.Errorf("failed to build webhook payload: %w", err),
			Category: errorCategoryValidation,
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, w.method, w.url, bytes.NewReader(payload))
	if err != nil {
		return &deliveryError{
			Err:      fmt.Errorf("failed to create request: %w", err),
			Category: errorCategoryValidation,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.headers {
		req.Header.Set(key, value)
	}
	applyWebhookAuth(req, &w.auth)

	resp, err := w.client.Do(reqCtx, req)
	if err != nil {
		category := errorCategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errorCategoryTimeout
		}
		return &deliveryError{
			Err:      fmt.Errorf("request failed: %w", err),
			Category: category,
		}
	}
	defer func() {
		// Drain before closing so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &deliveryError{
			Err:      fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body)),
			Category: errorCategoryProvider,
		}
	}

	return nil
}

// applyWebhookAuth applies the resolved credentials to the request.
func applyWebhookAuth(req *http.Request, auth *WebhookAuth) {
	switch auth.Type {
	case authTypeBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case authTypeBasic:
		req.SetBasicAuth(auth.User, auth.Pass)
	case authTypeCustom:
		req.Header.Set(auth.Header, auth.Value)
	}
}

// Close releases the provider's HTTP connection pool.
func (w *WebhookProvider) Close() {
	if w.client != nil {
		w.client.Close()
	}
}
