package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
)

// capturingServer records the last webhook request it received.
type capturingServer struct {
	server *httptest.Server
	status int

	mu      sync.Mutex
	method  string
	header  http.Header
	payload WebhookPayload
	user    string
	pass    string
	hasAuth bool
}

func newCapturingServer(t *testing.T) *capturingServer {
	t.Helper()
	cs := &capturingServer{status: http.StatusOK}
	cs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.method = r.Method
		cs.header = r.Header.Clone()
		cs.user, cs.pass, cs.hasAuth = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&cs.payload)
		w.WriteHeader(cs.status)
	}))
	t.Cleanup(cs.server.Close)
	return cs
}

func (cs *capturingServer) lastPayload() WebhookPayload {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.payload
}

func (cs *capturingServer) lastHeader(key string) string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.header.Get(key)
}

func (cs *capturingServer) lastMethod() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.method
}

func (cs *capturingServer) basicAuth() (string, string, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.user, cs.pass, cs.hasAuth
}

func newTestWebhook(t *testing.T, cfg *conf.WebhookConfig) *WebhookProvider {
	t.Helper()
	provider, err := NewWebhookProvider(cfg)
	require.NoError(t, err)
	require.NoError(t, provider.ValidateConfig())
	t.Cleanup(provider.Close)
	return provider
}

func deliveredNotification() *datastore.Notification {
	return &datastore.Notification{
		ID:             uuid.New().String(),
		Timestamp:      datastore.FormatTimestamp(time.Now()),
		Category:       "security",
		Message:        "Front door opened",
		Title:          "Front door",
		EntityID:       "binary_sensor.front_door",
		Delivered:      true,
		CollapsedCount: 1,
	}
}

func TestWebhookSendPayload(t *testing.T) {
	t.Parallel()

	cs := newCapturingServer(t)
	provider := newTestWebhook(t, &conf.WebhookConfig{
		Name:    "test-hook",
		URL:     cs.server.URL,
		Headers: map[string]string{"X-Hush-Node": "attic"},
	})

	n := deliveredNotification()
	require.NoError(t, provider.Send(context.Background(), n))

	assert.Equal(t, http.MethodPost, cs.lastMethod())
	assert.Equal(t, "application/json", cs.lastHeader("Content-Type"))
	assert.Equal(t, "attic", cs.lastHeader("X-Hush-Node"))

	payload := cs.lastPayload()
	assert.Equal(t, n.ID, payload.ID)
	assert.Equal(t, "security", payload.Category)
	assert.Equal(t, "Front door", payload.Title)
	assert.Equal(t, "Front door opened", payload.Message)
	assert.Equal(t, "binary_sensor.front_door", payload.EntityID)
	assert.Equal(t, n.Timestamp, payload.Timestamp)
	assert.Equal(t, 1, payload.CollapsedCount)
}

func TestWebhookMethodOverride(t *testing.T) {
	t.Parallel()

	cs := newCapturingServer(t)
	provider := newTestWebhook(t, &conf.WebhookConfig{
		Name:   "put-hook",
		URL:    cs.server.URL,
		Method: "put",
	})

	require.NoError(t, provider.Send(context.Background(), deliveredNotification()))
	assert.Equal(t, http.MethodPut, cs.lastMethod())
}

func TestWebhookBearerAuth(t *testing.T) {
	t.Parallel()

	cs := newCapturingServer(t)
	provider := newTestWebhook(t, &conf.WebhookConfig{
		Name: "bearer-hook",
		URL:  cs.server.URL,
		Auth: conf.WebhookAuthConfig{Type: "bearer", Token: "s3cret"},
	})

	require.NoError(t, provider.Send(context.Background(), deliveredNotification()))
	assert.Equal(t, "Bearer s3cret", cs.lastHeader("Authorization"))
}

func TestWebhookBearerTokenFromFile(t *testing.T) {
	t.Parallel()

	tokenPath := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("filetok\n"), 0o600))

	cs := newCapturingServer(t)
	provider := newTestWebhook(t, &conf.WebhookConfig{
		Name: "file-hook",
		URL:  cs.server.URL,
		Auth: conf.WebhookAuthConfig{Type: "bearer", TokenFile: tokenPath},
	})

	require.NoError(t, provider.Send(context.Background(), deliveredNotification()))
	assert.Equal(t, "Bearer filetok", cs.lastHeader("Authorization"))
}

func TestWebhookBasicAuth(t *testing.T) {
	t.Parallel()

	cs := newCapturingServer(t)
	provider := newTestWebhook(t, &conf.WebhookConfig{
		Name: "basic-hook",
		URL:  cs.server.URL,
		Auth: conf.WebhookAuthConfig{Type: "basic", User: "hush", Pass: "hunter2"},
	})

	require.NoError(t, provider.Send(context.Background(), deliveredNotification()))

	user, pass, ok := cs.basicAuth()
	assert.True(t, ok)
	assert.Equal(t, "hush", user)
	assert.Equal(t, "hunter2", pass)
}

func TestWebhookCustomHeaderAuth(t *testing.T) {
	t.Parallel()

	cs := newCapturingServer(t)
	provider := newTestWebhook(t, &conf.WebhookConfig{
		Name: "custom-hook",
		URL:  cs.server.URL,
		Auth: conf.WebhookAuthConfig{Type: "custom", Header: "X-Api-Key", Value: "k123"},
	})

	require.NoError(t, provider.Send(context.Background(), deliveredNotification()))
	assert.Equal(t, "k123", cs.lastHeader("X-Api-Key"))
}

func TestWebhookAuthResolutionFailure(t *testing.T) {
	t.Parallel()

	_, err := NewWebhookProvider(&conf.WebhookConfig{
		Name: "no-token",
		URL:  "https://example.com/hook",
		Auth: conf.WebhookAuthConfig{Type: "bearer"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer token is required")
}

func TestWebhookNon2xxStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	provider := newTestWebhook(t, &conf.WebhookConfig{Name: "failing", URL: server.URL})

	err := provider.Send(context.Background(), deliveredNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, errorCategoryProvider, deliveryErrorCategory(err))
}

func TestWebhookTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	provider := newTestWebhook(t, &conf.WebhookConfig{Name: "slow", URL: server.URL})
	provider.timeout = 50 * time.Millisecond

	err := provider.Send(context.Background(), deliveredNotification())
	require.Error(t, err)
	assert.Equal(t, errorCategoryTimeout, deliveryErrorCategory(err))
}

func TestWebhookValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     conf.WebhookConfig
		wantErr string
	}{
		{
			name:    "missing URL",
			cfg:     conf.WebhookConfig{Name: "h"},
			wantErr: "URL is required",
		},
		{
			name:    "bad scheme",
			cfg:     conf.WebhookConfig{Name: "h", URL: "ftp://example.com/hook"},
			wantErr: "scheme must be http or https",
		},
		{
			name:    "bad method",
			cfg:     conf.WebhookConfig{Name: "h", URL: "https://example.com/hook", Method: "DELETE"},
			wantErr: "method must be POST, PUT, or PATCH",
		},
		{
			name: "custom header with colon",
			cfg: conf.WebhookConfig{
				Name: "h",
				URL:  "https://example.com/hook",
				Auth: conf.WebhookAuthConfig{Type: "custom", Header: "X-Bad:Header", Value: "v"},
			},
			wantErr: "invalid characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			provider, err := NewWebhookProvider(&tt.cfg)
			require.NoError(t, err)
			t.Cleanup(provider.Close)

			err = provider.ValidateConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWebhookCategoryFilter(t *testing.T) {
	t.Parallel()

	provider, err := NewWebhookProvider(&conf.WebhookConfig{
		Name:       "filtered",
		URL:        "https://example.com/hook",
		Categories: []string{"safety", "security"},
	})
	require.NoError(t, err)
	t.Cleanup(provider.Close)

	assert.True(t, provider.SupportsCategory("safety"))
	assert.True(t, provider.SupportsCategory("security"))
	assert.False(t, provider.SupportsCategory("info"))
}
