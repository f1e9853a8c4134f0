package jetnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/internal/httpclient"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/metrics"
	"github.com/aviation-connect/adapters/pkg/redact"
)

const (
	// DefaultBaseURL is the JetNet Connect production host.
	DefaultBaseURL = "https://customer.jetnetconnect.com"
	// requestTimeout bounds each data call attempt.
	requestTimeout = 60 * time.Second
	// maxDescriptionBody caps how much of a vendor error body is quoted.
	maxDescriptionBody = 512
)

// CredentialSource yields the JetNet login for an account.
type CredentialSource interface {
	Resolve(ctx context.Context, account string) (auth.Credentials, error)
}

// SessionManager issues and invalidates token pairs. *auth.Manager implements it.
type SessionManager interface {
	GetTokens(ctx context.Context, creds auth.Credentials, forceRefresh bool) (auth.TokenPair, error)
	Invalidate(ctx context.Context, creds auth.Credentials) error
}

// Call is one logical JetNet data request.
type Call struct {
	Account  string
	Label    string // metrics label, e.g. "aircraft.get"
	Method   string
	Endpoint string // path without the api token, e.g. /api/Aircraft/getAircraft/123
	Body     any
	Query    url.Values
}

func (c Call) label() string {
	if c.Label != "" {
		return c.Label
	}
	return "adhoc"
}

// Response is a normalized payload plus how it was obtained.
type Response struct {
	Data            any
	Reauthenticated bool
	Attempts        int
}

type attemptState int

const (
	attemptFirst attemptState = iota
	attemptReauthenticated
)

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithRequestTimeout overrides the per-attempt timeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// Client performs authenticated JetNet data calls with one transparent
// re-login after a 401.
type Client struct {
	logger   *zap.Logger
	baseURL  string
	creds    CredentialSource
	sessions SessionManager
	exec     *httpclient.Executor
	timeout  time.Duration
}

// NewClient creates a Client. exec should be built with RequestLabel so the
// api token never reaches the logs.
func NewClient(
	logger *zap.Logger,
	baseURL string,
	creds CredentialSource,
	sessions SessionManager,
	exec *httpclient.Executor,
	opts ...ClientOption,
) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		creds:    creds,
		sessions: sessions,
		exec:     exec,
		timeout:  requestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request performs call and returns the normalized payload.
func (c *Client) Request(ctx context.Context, call Call) (any, error) {
	resp, err := c.Do(ctx, call)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Do performs call. Errors are *CredentialsMissingError,
// *auth.AuthenticationError or *APIError.
func (c *Client) Do(ctx context.Context, call Call) (*Response, error) {
	creds, err := c.resolve(ctx, call.Account)
	if err != nil {
		return nil, err
	}

	pair, err := c.sessions.GetTokens(ctx, creds, false)
	if err != nil {
		return nil, err
	}
	secrets := []string{creds.Password, pair.BearerToken, pair.APIToken}

	state := attemptFirst
	for {
		raw, err := c.send(ctx, call, pair)
		if err == nil {
			if state == attemptReauthenticated {
				metrics.IncReauthRetry("success")
			}
			return &Response{
				Data:            Normalize(raw),
				Reauthenticated: state == attemptReauthenticated,
				Attempts:        int(state) + 1,
			}, nil
		}

		if state == attemptFirst && httpclient.StatusCode(err) == http.StatusUnauthorized {
			c.logger.Info("jetnet.reauth_retry",
				zap.String("account", call.Account),
				zap.String("operation", call.label()))

			if ierr := c.sessions.Invalidate(ctx, creds); ierr != nil {
				c.logger.Warn("jetnet.invalidate_failed", zap.Error(ierr))
			}
			pair, err = c.sessions.GetTokens(ctx, creds, true)
			if err != nil {
				metrics.IncReauthRetry("login_failed")
				return nil, err
			}
			secrets = append(secrets, pair.BearerToken, pair.APIToken)
			state = attemptReauthenticated
			continue
		}

		if state == attemptReauthenticated {
			metrics.IncReauthRetry("failure")
		}
		apiErr := c.apiError(err, secrets)
		c.logger.Warn("jetnet.request_failed",
			zap.String("account", call.Account),
			zap.String("operation", call.label()),
			zap.Int("status", apiErr.StatusCode),
			zap.Bool("timeout", apiErr.timeout),
			zap.String("error", apiErr.Error()))
		return nil, apiErr
	}
}

func (c *Client) resolve(ctx context.Context, account string) (auth.Credentials, error) {
	creds, err := c.creds.Resolve(ctx, account)
	if err != nil {
		c.logger.Warn("jetnet.credentials_missing", zap.String("account", account), zap.Error(err))
		return auth.Credentials{}, &CredentialsMissingError{Account: account, cause: err}
	}
	if !creds.Complete() {
		return auth.Credentials{}, &CredentialsMissingError{Account: account}
	}
	return creds, nil
}

// send issues one attempt with pair. The api token is appended as the last
// path segment; it is never sent as a header or query parameter.
func (c *Client) send(ctx context.Context, call Call, pair auth.TokenPair) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + call.Endpoint + "/" + url.PathEscape(pair.APIToken)
	if len(call.Query) > 0 {
		target += "?" + call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		payload, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+pair.BearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	var out any
	err = c.exec.DoJSON(ctx, req, call.Account, &out)
	metrics.IncJetNetRequest(call.label(), call.Method, statusLabel(err))
	metrics.ObserveDuration(metrics.JetNetRequestDuration, start, call.label(), call.Method)
	return out, err
}

func (c *Client) apiError(err error, secrets []string) *APIError {
	apiErr := &APIError{cause: err, timeout: isTimeout(err)}

	var se *httpclient.StatusError
	switch {
	case errors.As(err, &se):
		apiErr.StatusCode = se.StatusCode
		apiErr.Message = statusMessage(se.StatusCode)
		apiErr.Description = redact.SanitizeWith(describeBody(se.Body), secrets...)
	case apiErr.timeout:
		apiErr.Message = "JetNet API request timed out"
		apiErr.Description = fmt.Sprintf("no response within %s", c.timeout)
	default:
		apiErr.Message = "JetNet API request failed"
		apiErr.Description = redact.SanitizeWith(err.Error(), secrets...)
	}
	return apiErr
}

// describeBody prefers the vendor's responsestatus text over the raw body.
func describeBody(body []byte) string {
	var env struct {
		ResponseStatus string `json:"responsestatus"`
		Message        string `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.ResponseStatus != "" {
			return env.ResponseStatus
		}
		if env.Message != "" {
			return env.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxDescriptionBody {
		text = text[:maxDescriptionBody] + "..."
	}
	return text
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := httpclient.StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	if isTimeout(err) {
		return "timeout"
	}
	return "error"
}

// RequestLabel describes a JetNet request for logs without its trailing api
// token segment.
func RequestLabel(r *http.Request) string {
	return r.Method + " " + path.Dir(r.URL.Path)
}
