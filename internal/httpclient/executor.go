package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/internal/rate"
)

// maxErrorBody caps how much of a failed response body is kept on a StatusError.
const maxErrorBody = 4 << 10

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Venue      string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Venue, e.StatusCode)
}

// StatusCode extracts the HTTP status from err, or 0 if err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Option customises an Executor.
type Option func(*Executor)

// WithRequestLabel sets how requests are described in logs. The default is
// the full URL; venues that carry secrets in the URL should override it.
func WithRequestLabel(fn func(*http.Request) string) Option {
	return func(e *Executor) { e.label = fn }
}

// Executor handles rate-limited HTTP execution with JSON decoding.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	venueTag     string
	errorHandler func(status int, body []byte) error
	label        func(*http.Request) string
}

// New creates an Executor. retryMax bounds retries of transport errors and 5xx
// responses; zero means a single attempt. errorHandler, if set, converts a
// final non-2xx response into a venue-specific error; otherwise a *StatusError
// is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	venueTag string,
	errorHandler func(status int, body []byte) error,
	opts ...Option,
) *Executor {
	e := &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		venueTag:     venueTag,
		errorHandler: errorHandler,
		label:        func(r *http.Request) string { return r.URL.String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DoJSON executes req with rate limiting, then JSON-decodes a 2xx body into
// out. Numbers decoded into interface values are kept as json.Number.
// rateLimitKey scopes the rate limiter per account.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	label := e.label(req)
	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return err
			}
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			lastErr = err
			e.logger.Warn(e.venueTag+".http_failed",
				zap.String("request", label),
				zap.Error(err),
				zap.Int("attempt", attempt))
			if ctx.Err() != nil {
				break
			}
			if attempt < e.retryMax {
				time.Sleep(Backoff(attempt))
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 && attempt < e.retryMax {
			e.logger.Warn(e.venueTag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("request", label),
				zap.Duration("latency", elapsed))
			lastErr = &StatusError{Venue: e.venueTag, StatusCode: resp.StatusCode, Body: truncate(body)}
			time.Sleep(Backoff(attempt))
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			e.logger.Debug(e.venueTag+".http_status",
				zap.Int("status", resp.StatusCode),
				zap.String("request", label),
				zap.Duration("latency", elapsed))
			if e.errorHandler != nil {
				return e.errorHandler(resp.StatusCode, body)
			}
			return &StatusError{Venue: e.venueTag, StatusCode: resp.StatusCode, Body: truncate(body)}
		}

		if out != nil && len(bytes.TrimSpace(body)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			if err := dec.Decode(out); err != nil {
				e.logger.Warn(e.venueTag+".decode_failed",
					zap.Error(err),
					zap.String("request", label),
					zap.Int("body_bytes", len(body)))
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug(e.venueTag+".http_success",
			zap.String("request", label),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		return nil
	}

	if e.retryMax == 0 {
		return lastErr
	}
	return fmt.Errorf("%s request failed after %d attempts: %w", e.venueTag, e.retryMax+1, lastErr)
}

// rewind resets the request body before a retry.
func rewind(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("replay body: %w", err)
	}
	req.Body = body
	return nil
}

func truncate(b []byte) []byte {
	if len(b) > maxErrorBody {
		return b[:maxErrorBody]
	}
	return b
}
