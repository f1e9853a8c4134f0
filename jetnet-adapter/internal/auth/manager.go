package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/metrics"
	"github.com/aviation-connect/adapters/pkg/redact"
)

const (
	// LoginPath is the JetNet authentication endpoint.
	LoginPath = "/api/Admin/APILogin"
	// tokenExpiryBuffer is the margin before expiry at which a pair is treated as expired.
	tokenExpiryBuffer = 5 * time.Minute
	// defaultTokenLifetime applies when the login response carries no usable expiry.
	defaultTokenLifetime = 24 * time.Hour
	// loginTimeout bounds the APILogin call.
	loginTimeout = 60 * time.Second
	// maxExpiresIn is the largest expires_in (seconds) that fits a time.Duration.
	maxExpiresIn = float64(math.MaxInt64 / int64(time.Second))

	authFailedMessage = "Authentication failed"
	authFailedPrefix  = "Failed to authenticate with JetNet API: "
)

// expiryLayouts are tried in order for the "expiry" login field. Zone-less
// values are read as UTC.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
}

// Option customises a Manager.
type Option func(*Manager)

// WithHTTPClient replaces the HTTP client used for APILogin.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLoginDedupe collapses concurrent logins for the same session key into
// one APILogin call.
func WithLoginDedupe() Option {
	return func(m *Manager) { m.dedupe = true }
}

// Manager issues and caches JetNet session token pairs. It is the only
// reader and writer of its TokenStore.
type Manager struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
	store   TokenStore
	now     func() time.Time
	dedupe  bool
	group   singleflight.Group
}

// NewManager creates a Manager logging in against baseURL.
func NewManager(logger *zap.Logger, baseURL string, store TokenStore, opts ...Option) *Manager {
	m := &Manager{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: loginTimeout},
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetTokens returns a pair for creds. Unless forceRefresh is set, a cached
// pair that is still valid beyond the expiry buffer is returned without I/O;
// otherwise a fresh login is performed and stored.
func (m *Manager) GetTokens(ctx context.Context, creds Credentials, forceRefresh bool) (TokenPair, error) {
	key := SessionKey(creds)

	if !forceRefresh {
		if pair, ok := m.cached(ctx, key); ok {
			return pair, nil
		}
	}

	if !m.dedupe {
		return m.login(ctx, key, creds)
	}

	// The shared login runs detached from any single caller so one caller
	// cancelling does not fail the others waiting on the same key.
	ch := m.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()
		return m.login(lctx, key, creds)
	})

	select {
	case <-ctx.Done():
		return TokenPair{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			m.logger.Debug("jetnet.auth.login_shared", zap.String("username", creds.Username))
		}
		if res.Err != nil {
			return TokenPair{}, res.Err
		}
		return res.Val.(TokenPair), nil
	}
}

// Invalidate drops the cached pair for creds.
func (m *Manager) Invalidate(ctx context.Context, creds Credentials) error {
	if err := m.store.Delete(ctx, SessionKey(creds)); err != nil {
		m.logger.Warn("jetnet.auth.invalidate_failed",
			zap.String("username", creds.Username),
			zap.Error(err))
		return fmt.Errorf("invalidate session: %w", err)
	}
	m.logger.Info("jetnet.auth.session_invalidated", zap.String("username", creds.Username))
	return nil
}

func (m *Manager) cached(ctx context.Context, key string) (TokenPair, bool) {
	pair, ok, err := m.store.Get(ctx, key)
	switch {
	case err != nil:
		// Store errors degrade to a cache miss.
		m.logger.Warn("jetnet.auth.store_get_failed", zap.Error(err))
		metrics.IncTokenCache("error")
		return TokenPair{}, false
	case !ok:
		metrics.IncTokenCache("miss")
		return TokenPair{}, false
	case !pair.ValidAt(m.now()):
		metrics.IncTokenCache("expired")
		return TokenPair{}, false
	default:
		metrics.IncTokenCache("hit")
		return pair, true
	}
}

func (m *Manager) login(ctx context.Context, key string, creds Credentials) (TokenPair, error) {
	pair, err := m.fetchTokens(ctx, creds)
	if err != nil {
		metrics.IncLogin("failure")
		m.logger.Warn("jetnet.auth.login_failed",
			zap.String("username", creds.Username),
			zap.Error(err))
		return TokenPair{}, m.authFailure(err, creds)
	}
	metrics.IncLogin("success")

	if err := m.store.Put(ctx, key, pair); err != nil {
		m.logger.Warn("jetnet.auth.store_put_failed", zap.Error(err))
	}

	m.logger.Info("jetnet.auth.login_success",
		zap.String("username", creds.Username),
		zap.Time("expires_at", pair.ExpiresAt))
	return pair, nil
}

// fetchTokens performs APILogin and parses the response.
func (m *Manager) fetchTokens(ctx context.Context, creds Credentials) (TokenPair, error) {
	payload, err := json.Marshal(loginRequest{
		EmailAddress: creds.Username,
		Password:     creds.Password,
	})
	if err != nil {
		return TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+LoginPath, bytes.NewReader(payload))
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return TokenPair{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenPair{}, fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenPair{}, fmt.Errorf("login returned %d", resp.StatusCode)
	}

	return m.parseLogin(body)
}

func (m *Manager) parseLogin(body []byte) (TokenPair, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return TokenPair{}, fmt.Errorf("login response is not valid JSON: %w", err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return TokenPair{}, fmt.Errorf("login response is not a JSON object (got %s)", kindOf(doc))
	}

	bearer, _ := obj["bearerToken"].(string)
	api, _ := obj["apiToken"].(string)
	if bearer == "" || api == "" {
		// Field names only: values may themselves be secrets.
		return TokenPair{}, fmt.Errorf("missing tokens in authentication response; fields present: [%s]", strings.Join(sortedKeys(obj), ", "))
	}

	return TokenPair{
		BearerToken: bearer,
		APIToken:    api,
		ExpiresAt:   m.expiryFrom(obj),
	}, nil
}

// expiryFrom applies expires_in (seconds), then expiry (timestamp), then the
// 24h default.
func (m *Manager) expiryFrom(obj map[string]any) time.Time {
	now := m.now()
	if secs, ok := positiveSeconds(obj["expires_in"]); ok {
		if secs > maxExpiresIn {
			m.logger.Warn("jetnet.auth.expires_in_out_of_range", zap.Float64("expires_in", secs))
			return now.Add(defaultTokenLifetime)
		}
		return now.Add(time.Duration(secs * float64(time.Second)))
	}
	if s, ok := obj["expiry"].(string); ok && strings.TrimSpace(s) != "" {
		if t, err := parseExpiry(s); err == nil {
			return t
		}
		m.logger.Warn("jetnet.auth.expiry_unparseable",
			zap.String("expiry", s),
			zap.Duration("fallback", defaultTokenLifetime))
	}
	return now.Add(defaultTokenLifetime)
}

func (m *Manager) authFailure(cause error, creds Credentials) error {
	return &AuthenticationError{
		Message:     authFailedMessage,
		Description: authFailedPrefix + redact.SanitizeWith(cause.Error(), creds.Password),
	}
}

func parseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized expiry format")
}

func positiveSeconds(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, f > 0
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
