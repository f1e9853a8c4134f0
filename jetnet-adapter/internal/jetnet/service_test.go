package jetnet

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/internal/audit"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
	"github.com/aviation-connect/adapters/pkg/model"
)

// stubGateway answers calls from a function and records them.
type stubGateway struct {
	mu    sync.Mutex
	calls []Call
	fn    func(Call) (*Response, error)
}

func (g *stubGateway) Do(_ context.Context, call Call) (*Response, error) {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()
	return g.fn(call)
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []audit.CallRecord
	err     error
}

func (r *memoryRecorder) Record(_ context.Context, rec audit.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

type stubSessions struct {
	gets int
	err  error
}

func (s *stubSessions) GetTokens(context.Context, auth.Credentials, bool) (auth.TokenPair, error) {
	s.gets++
	return auth.TokenPair{}, s.err
}

func (s *stubSessions) Invalidate(context.Context, auth.Credentials) error { return nil }

type stubLister struct{ accounts []string }

func (l stubLister) DiscoverAccounts(context.Context) ([]string, error) { return l.accounts, nil }

func newTestService(t *testing.T, gw Gateway, rec CallRecorder) *Service {
	t.Helper()
	svc := NewService(zap.NewNop(), ServiceConfig{
		Catalog:        loadCatalog(t),
		Gateway:        gw,
		Credentials:    NewStaticCredentials(testUser, testPassword),
		Sessions:       &stubSessions{},
		Recorder:       rec,
		DefaultAccount: "default",
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// ─── Execute ──────────────────────────────────────────────────────────────────

func TestExecute_BuildsCallAndRecords(t *testing.T) {
	gw := &stubGateway{fn: func(Call) (*Response, error) {
		return &Response{Data: map[string]any{"aircraftid": 1}, Reauthenticated: true, Attempts: 2}, nil
	}}
	rec := &memoryRecorder{}
	svc := newTestService(t, gw, rec)

	data, err := svc.Execute(context.Background(), Invocation{
		Resource:  "aircraft",
		Operation: "getPictures",
		Params:    map[string]any{"aircraftId": 55},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"aircraftid": 1}, data)

	require.Len(t, gw.calls, 1)
	call := gw.calls[0]
	assert.Equal(t, "default", call.Account, "empty account falls back to the default")
	assert.Equal(t, "aircraft.getPictures", call.Label)
	assert.Equal(t, http.MethodGet, call.Method)
	assert.Equal(t, "/api/Aircraft/getPictures/55", call.Endpoint)
	assert.Nil(t, call.Body)

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, "ok", r.Outcome)
	assert.True(t, r.Reauthenticated)
	assert.Equal(t, "/api/Aircraft/getPictures/55", r.Endpoint)
}

func TestExecute_UnknownOperation(t *testing.T) {
	gw := &stubGateway{fn: func(Call) (*Response, error) { return &Response{}, nil }}
	svc := newTestService(t, gw, nil)

	_, err := svc.Execute(context.Background(), Invocation{Resource: "aircraft", Operation: "fly"})
	assert.ErrorIs(t, err, ErrUnknownOperation)
	assert.Empty(t, gw.calls)
}

func TestExecute_MissingParamSkipsGateway(t *testing.T) {
	gw := &stubGateway{fn: func(Call) (*Response, error) { return &Response{}, nil }}
	svc := newTestService(t, gw, nil)

	_, err := svc.Execute(context.Background(), Invocation{Resource: "company", Operation: "get"})
	var pe *ParamError
	assert.True(t, errors.As(err, &pe))
	assert.Empty(t, gw.calls)
}

func TestExecute_FailureRecordedAndAuditErrorIgnored(t *testing.T) {
	apiErr := &APIError{StatusCode: 500, Message: "JetNet API returned 500 Internal Server Error"}
	gw := &stubGateway{fn: func(Call) (*Response, error) { return nil, apiErr }}
	rec := &memoryRecorder{err: errors.New("db down")}
	svc := newTestService(t, gw, rec)

	_, err := svc.Execute(context.Background(), Invocation{Account: "acme", Resource: "market", Operation: "getStateList"})
	assert.ErrorIs(t, err, apiErr)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "error", rec.records[0].Outcome)
	assert.Equal(t, "acme", rec.records[0].Account)
	assert.Contains(t, rec.records[0].Error, "500")
}

// ─── ExecuteTool ──────────────────────────────────────────────────────────────

func TestExecuteTool_Envelope(t *testing.T) {
	gw := &stubGateway{fn: func(Call) (*Response, error) {
		return &Response{Data: []any{map[string]any{"state": "TX"}}}, nil
	}}
	svc := newTestService(t, gw, nil)

	res, err := svc.ExecuteTool(context.Background(), Invocation{Resource: "market", Operation: "getStateList"})
	require.NoError(t, err)
	assert.Equal(t, "Get list of states", res.Description)
	assert.Equal(t, []any{map[string]any{"state": "TX"}}, res.Data)
	assert.Equal(t, model.ToolMetadata{Resource: "market", Operation: "getStateList", Timestamp: "2026-03-01T12:00:00Z"}, res.Metadata)

	res, err = svc.ExecuteTool(context.Background(), Invocation{Resource: "market", Operation: "getStateList", Description: "US states"})
	require.NoError(t, err)
	assert.Equal(t, "US states", res.Description)
}

// ─── ExecuteBatch ─────────────────────────────────────────────────────────────

func TestExecuteBatch_FanOutPreservesOrder(t *testing.T) {
	gw := &stubGateway{fn: func(c Call) (*Response, error) {
		switch c.Endpoint {
		case "/api/Aircraft/getAircraft/1":
			time.Sleep(20 * time.Millisecond)
			return &Response{Data: map[string]any{"id": 1}}, nil
		case "/api/Aircraft/getAircraft/2":
			return &Response{Data: []any{map[string]any{"id": 2}, map[string]any{"id": 3}}}, nil
		case "/api/Aircraft/getAircraft/3":
			return &Response{Data: "ok"}, nil
		default:
			return &Response{Data: nil}, nil
		}
	}}
	svc := newTestService(t, gw, nil)

	invs := make([]Invocation, 4)
	for i := range invs {
		invs[i] = Invocation{Resource: "aircraft", Operation: "get", Params: map[string]any{"aircraftId": i + 1}}
	}

	items, err := svc.ExecuteBatch(context.Background(), invs, BatchOptions{Concurrency: 4})
	require.NoError(t, err)
	assert.Equal(t, []model.Item{
		{"id": 1},
		{"id": 2},
		{"id": 3},
		{"value": "ok"},
		{},
	}, items)
}

func TestExecuteBatch_ContinueOnFail(t *testing.T) {
	gw := &stubGateway{fn: func(c Call) (*Response, error) {
		if c.Endpoint == "/api/Aircraft/getAircraft/2" {
			return nil, &APIError{StatusCode: 404, Message: "JetNet API returned 404 Not Found"}
		}
		return &Response{Data: map[string]any{"ok": true}}, nil
	}}
	svc := newTestService(t, gw, nil)

	invs := []Invocation{
		{Resource: "aircraft", Operation: "get", Params: map[string]any{"aircraftId": 1}},
		{Resource: "aircraft", Operation: "get", Params: map[string]any{"aircraftId": 2}},
		{Resource: "aircraft", Operation: "get", Params: map[string]any{"aircraftId": 3}},
	}
	items, err := svc.ExecuteBatch(context.Background(), invs, BatchOptions{ContinueOnFail: true})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, model.Item{"error": "JetNet API returned 404 Not Found", "pairedItem": 1}, items[1])
	assert.Equal(t, model.Item{"ok": true}, items[2])
}

func TestExecuteBatch_StopsOnFirstFailure(t *testing.T) {
	gw := &stubGateway{fn: func(Call) (*Response, error) { return &Response{Data: map[string]any{}}, nil }}
	svc := newTestService(t, gw, nil)

	invs := []Invocation{
		{Resource: "aircraft", Operation: "get", Params: map[string]any{"aircraftId": 1}},
		{Resource: "aircraft", Operation: "get"},
	}
	_, err := svc.ExecuteBatch(context.Background(), invs, BatchOptions{Concurrency: 1})

	var ie *ItemError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 1, ie.Index)
	var pe *ParamError
	assert.True(t, errors.As(err, &pe))
}

func TestFanOut(t *testing.T) {
	page := Page{Items: []any{map[string]any{"a": 1}, "x"}, Pagination: Pagination{Page: 1}}
	assert.Equal(t, []model.Item{{"a": 1}, {"value": "x"}}, FanOut(page))
	assert.Equal(t, []model.Item{}, FanOut([]any{}))
	assert.Equal(t, []model.Item{{"value": 3.5}}, FanOut(3.5))
}

// ─── Session warm-up ──────────────────────────────────────────────────────────

func TestWarmSessionAndAccounts(t *testing.T) {
	sessions := &stubSessions{}
	svc := NewService(zap.NewNop(), ServiceConfig{
		Catalog:        loadCatalog(t),
		Credentials:    NewStaticCredentials(testUser, testPassword),
		Sessions:       sessions,
		DefaultAccount: "default",
	})

	require.NoError(t, svc.WarmSession(context.Background(), ""))
	assert.Equal(t, 1, sessions.gets)

	accounts, err := svc.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, accounts)

	svc.accounts = stubLister{accounts: []string{"acme", "globex"}}
	accounts, err = svc.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, accounts)

	svc.accounts = StaticAccounts{"ops"}
	accounts, err = svc.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, accounts)
	require.NoError(t, svc.Warm(context.Background(), "ops"))
	assert.Equal(t, 2, sessions.gets)
}

func TestWarmSession_NoCredentials(t *testing.T) {
	svc := NewService(zap.NewNop(), ServiceConfig{
		Catalog:     loadCatalog(t),
		Credentials: NewStaticCredentials("", ""),
		Sessions:    &stubSessions{},
	})
	var missing *CredentialsMissingError
	assert.True(t, errors.As(svc.WarmSession(context.Background(), "acme"), &missing))
}
