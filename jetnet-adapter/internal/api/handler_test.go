package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/jetnet"
	"github.com/aviation-connect/adapters/pkg/model"
)

// ─── Mock service ─────────────────────────────────────────────────────────────

type mockOperationService struct {
	catalog   *jetnet.Catalog
	executeFn func(ctx context.Context, inv jetnet.Invocation) (any, error)
	toolFn    func(ctx context.Context, inv jetnet.Invocation) (*model.ToolResult, error)
	batchFn   func(ctx context.Context, invs []jetnet.Invocation, opts jetnet.BatchOptions) ([]model.Item, error)
}

func (m *mockOperationService) Execute(ctx context.Context, inv jetnet.Invocation) (any, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, inv)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockOperationService) ExecuteTool(ctx context.Context, inv jetnet.Invocation) (*model.ToolResult, error) {
	if m.toolFn != nil {
		return m.toolFn(ctx, inv)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockOperationService) ExecuteBatch(ctx context.Context, invs []jetnet.Invocation, opts jetnet.BatchOptions) ([]model.Item, error) {
	if m.batchFn != nil {
		return m.batchFn(ctx, invs, opts)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockOperationService) Catalog() *jetnet.Catalog { return m.catalog }

// ─── Test app helpers ─────────────────────────────────────────────────────────

func newTestApp(t *testing.T, svc *mockOperationService) *fiber.App {
	t.Helper()
	if svc.catalog == nil {
		c, err := jetnet.LoadCatalog()
		require.NoError(t, err)
		svc.catalog = c
	}
	app := fiber.New()
	RegisterRoutes(app, nil, nil, NewJetNetHandler(zap.NewNop(), svc, 3))
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

// ─── ExecuteOperation ─────────────────────────────────────────────────────────

func TestExecuteOperation_Success(t *testing.T) {
	svc := &mockOperationService{
		executeFn: func(_ context.Context, inv jetnet.Invocation) (any, error) {
			assert.Equal(t, "acme", inv.Account)
			assert.Equal(t, "aircraft", inv.Resource)
			assert.Equal(t, "get", inv.Operation)
			assert.Equal(t, float64(123), inv.Params["aircraftId"])
			return map[string]any{"aircraftid": 123, "make": "GULFSTREAM"}, nil
		},
	}
	app := newTestApp(t, svc)

	code, body := post(t, app, "/api/v1/operations/aircraft/get", `{"account":"acme","params":{"aircraftId":123}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "aircraft", body["resource"])
	assert.Equal(t, "get", body["operation"])
	assert.Equal(t, map[string]any{"aircraftid": float64(123), "make": "GULFSTREAM"}, body["data"])
	assert.NotContains(t, body, "items")
}

func TestExecuteOperation_EmptyBody(t *testing.T) {
	svc := &mockOperationService{
		executeFn: func(_ context.Context, inv jetnet.Invocation) (any, error) {
			assert.Empty(t, inv.Account)
			return []any{"TX", "FL"}, nil
		},
	}
	app := newTestApp(t, svc)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/operations/market/getStateList", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExecuteOperation_Batch(t *testing.T) {
	svc := &mockOperationService{
		batchFn: func(_ context.Context, invs []jetnet.Invocation, opts jetnet.BatchOptions) ([]model.Item, error) {
			require.Len(t, invs, 2)
			assert.Equal(t, "acme", invs[1].Account)
			assert.Equal(t, float64(2), invs[1].Params["aircraftId"])
			assert.Equal(t, 3, opts.Concurrency)
			assert.True(t, opts.ContinueOnFail)
			return []model.Item{{"id": 1}, {"error": "boom", "pairedItem": 1}}, nil
		},
	}
	app := newTestApp(t, svc)

	code, body := post(t, app, "/api/v1/operations/aircraft/get",
		`{"account":"acme","continueOnFail":true,"items":[{"params":{"aircraftId":1}},{"params":{"aircraftId":2}}]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 2)
}

func TestExecuteOperation_BatchItemFailure(t *testing.T) {
	svc := &mockOperationService{
		batchFn: func(context.Context, []jetnet.Invocation, jetnet.BatchOptions) ([]model.Item, error) {
			return nil, &jetnet.ItemError{Index: 1, Err: &jetnet.ParamError{Resource: "aircraft", Operation: "get", Missing: []string{"aircraftId"}}}
		},
	}
	app := newTestApp(t, svc)

	code, body := post(t, app, "/api/v1/operations/aircraft/get", `{"items":[{},{}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, float64(1), body["item"])
	assert.Contains(t, body["error"], "missing required parameter(s): aircraftId")
}

func TestExecuteOperation_InvalidJSON(t *testing.T) {
	app := newTestApp(t, &mockOperationService{})
	code, body := post(t, app, "/api/v1/operations/aircraft/get", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestExecuteOperation_InvalidAccount(t *testing.T) {
	app := newTestApp(t, &mockOperationService{})
	code, body := post(t, app, "/api/v1/operations/aircraft/get", `{"account":"a/b"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "single token")
}

func TestExecuteOperation_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantDesc string
	}{
		{"unknown operation", fmt.Errorf("%w: aircraft.fly", jetnet.ErrUnknownOperation), http.StatusNotFound, ""},
		{"missing param", &jetnet.ParamError{Resource: "aircraft", Operation: "get", Missing: []string{"aircraftId"}}, http.StatusBadRequest, ""},
		{"no credentials", &jetnet.CredentialsMissingError{Account: "acme"}, http.StatusPreconditionFailed, "Please add JetNet API credentials"},
		{"login failed", &auth.AuthenticationError{Message: "Authentication failed", Description: "Failed to authenticate with JetNet API: login returned 403"}, http.StatusBadGateway, "Failed to authenticate with JetNet API: login returned 403"},
		{"upstream 500", &jetnet.APIError{StatusCode: 500, Message: "JetNet API returned 500 Internal Server Error"}, http.StatusBadGateway, ""},
		{"upstream 404", &jetnet.APIError{StatusCode: 404, Message: "JetNet API returned 404 Not Found", Description: "NOT FOUND"}, http.StatusNotFound, "NOT FOUND"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOperationService{
				executeFn: func(context.Context, jetnet.Invocation) (any, error) { return nil, tt.err },
			}
			app := newTestApp(t, svc)

			code, body := post(t, app, "/api/v1/operations/aircraft/get", `{}`)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.err.Error(), body["error"])
			if tt.wantDesc == "" {
				assert.NotContains(t, body, "description")
			} else {
				assert.Equal(t, tt.wantDesc, body["description"])
			}
		})
	}
}

func TestExecuteOperation_ErrorIsSanitized(t *testing.T) {
	svc := &mockOperationService{
		executeFn: func(context.Context, jetnet.Invocation) (any, error) {
			return nil, fmt.Errorf("dial failed: Authorization: Bearer abc.def.ghi")
		},
	}
	app := newTestApp(t, svc)

	_, body := post(t, app, "/api/v1/operations/aircraft/get", `{}`)
	assert.NotContains(t, body["error"], "abc.def.ghi")
}

// ─── ExecuteTool ──────────────────────────────────────────────────────────────

func TestExecuteTool_Success(t *testing.T) {
	svc := &mockOperationService{
		toolFn: func(_ context.Context, inv jetnet.Invocation) (*model.ToolResult, error) {
			assert.Equal(t, "States list", inv.Description)
			return &model.ToolResult{
				Description: inv.Description,
				Data:        []any{"TX"},
				Metadata:    model.ToolMetadata{Resource: inv.Resource, Operation: inv.Operation, Timestamp: "2026-03-01T12:00:00Z"},
			}, nil
		},
	}
	app := newTestApp(t, svc)

	code, body := post(t, app, "/api/v1/tools/market/getStateList", `{"description":"States list"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "States list", body["description"])
	assert.Equal(t, []any{"TX"}, body["data"])
	assert.Equal(t, map[string]any{
		"resource":  "market",
		"operation": "getStateList",
		"timestamp": "2026-03-01T12:00:00Z",
	}, body["metadata"])
}

func TestExecuteTool_ErrorShape(t *testing.T) {
	svc := &mockOperationService{
		toolFn: func(context.Context, jetnet.Invocation) (*model.ToolResult, error) {
			return nil, &jetnet.APIError{StatusCode: 502, Message: "JetNet API request timed out"}
		},
	}
	app := newTestApp(t, svc)

	code, body := post(t, app, "/api/v1/tools/company/get", `{"params":{"companyId":1}}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, map[string]any{
		"error":     "JetNet API request timed out",
		"resource":  "company",
		"operation": "get",
	}, body)
}

// ─── ListOperations / health ──────────────────────────────────────────────────

func TestListOperations(t *testing.T) {
	app := newTestApp(t, &mockOperationService{})

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/operations", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []ResourceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 4)
	assert.Equal(t, "aircraft", out[0].Resource)
	assert.Len(t, out[0].Operations, 29)
	assert.Equal(t, "get", out[0].Operations[0].Operation)
	assert.Equal(t, []string{"aircraftId"}, out[0].Operations[0].Params)
}

func TestHealth_DisabledDependencies(t *testing.T) {
	app := newTestApp(t, &mockOperationService{})

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, map[string]any{"nats": "disabled", "store": "disabled"}, out["checks"])
}
