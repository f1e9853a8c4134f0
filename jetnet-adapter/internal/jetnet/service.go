package jetnet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aviation-connect/adapters/internal/audit"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/metrics"
	"github.com/aviation-connect/adapters/pkg/model"
	"github.com/aviation-connect/adapters/pkg/redact"
)

// ErrUnknownOperation is returned for a (resource, operation) pair missing
// from the catalog.
var ErrUnknownOperation = errors.New("unknown operation")

const defaultBatchConcurrency = 4

// Invocation selects one catalog operation and its inputs.
type Invocation struct {
	Account     string
	Resource    string
	Operation   string
	Params      map[string]any
	Fields      map[string]any
	Description string // tool description override
}

// Gateway performs a data call. *Client implements it.
type Gateway interface {
	Do(ctx context.Context, call Call) (*Response, error)
}

// CallRecorder persists one audit record per dispatched operation.
type CallRecorder interface {
	Record(ctx context.Context, rec audit.CallRecord) error
}

// AccountLister discovers configured accounts.
type AccountLister interface {
	DiscoverAccounts(ctx context.Context) ([]string, error)
}

// BatchOptions controls ExecuteBatch.
type BatchOptions struct {
	Concurrency    int
	ContinueOnFail bool
}

// ItemError is the first failure of a batch run without ContinueOnFail.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Err.Error())
}

func (e *ItemError) Unwrap() error { return e.Err }

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Catalog        *Catalog
	Gateway        Gateway
	Credentials    CredentialSource
	Sessions       SessionManager
	Recorder       CallRecorder  // optional
	Accounts       AccountLister // optional
	DefaultAccount string
}

// Service dispatches catalog operations through the gateway.
type Service struct {
	logger         *zap.Logger
	catalog        *Catalog
	gateway        Gateway
	creds          CredentialSource
	sessions       SessionManager
	recorder       CallRecorder
	accounts       AccountLister
	defaultAccount string
	now            func() time.Time
}

func NewService(logger *zap.Logger, cfg ServiceConfig) *Service {
	return &Service{
		logger:         logger,
		catalog:        cfg.Catalog,
		gateway:        cfg.Gateway,
		creds:          cfg.Credentials,
		sessions:       cfg.Sessions,
		recorder:       cfg.Recorder,
		accounts:       cfg.Accounts,
		defaultAccount: cfg.DefaultAccount,
		now:            time.Now,
	}
}

// Catalog exposes the operation table.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Execute runs one operation and returns its normalized payload.
func (s *Service) Execute(ctx context.Context, inv Invocation) (any, error) {
	op, ok := s.catalog.Lookup(inv.Resource, inv.Operation)
	if !ok {
		metrics.IncOperation(inv.Resource, inv.Operation, "unknown")
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, inv.Resource, inv.Operation)
	}

	method, endpoint, body, err := op.Build(inv.Params, inv.Fields)
	if err != nil {
		metrics.IncOperation(inv.Resource, inv.Operation, "invalid")
		return nil, err
	}

	account := s.account(inv.Account)
	start := s.now()
	resp, err := s.gateway.Do(ctx, Call{
		Account:  account,
		Label:    catalogKey(op.Resource, op.Name),
		Method:   method,
		Endpoint: endpoint,
		Body:     body,
	})

	rec := audit.CallRecord{
		Account:   account,
		Resource:  op.Resource,
		Operation: op.Name,
		Method:    method,
		Endpoint:  endpoint,
		Outcome:   "ok",
		Duration:  s.now().Sub(start),
	}
	if err != nil {
		rec.Outcome = "error"
		rec.Error = err.Error()
		metrics.IncOperation(op.Resource, op.Name, "error")
	} else {
		rec.Reauthenticated = resp.Reauthenticated
		metrics.IncOperation(op.Resource, op.Name, "ok")
	}
	s.record(ctx, rec)

	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ExecuteTool runs one operation and wraps the payload for agent callers.
func (s *Service) ExecuteTool(ctx context.Context, inv Invocation) (*model.ToolResult, error) {
	data, err := s.Execute(ctx, inv)
	if err != nil {
		return nil, err
	}
	desc := inv.Description
	if desc == "" {
		desc = s.catalog.Description(inv.Resource, inv.Operation)
	}
	return &model.ToolResult{
		Description: desc,
		Data:        data,
		Metadata: model.ToolMetadata{
			Resource:  inv.Resource,
			Operation: inv.Operation,
			Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

// ExecuteBatch runs invs concurrently and flattens the results into output
// items, preserving input order. With ContinueOnFail a failed invocation
// yields {error, pairedItem}; otherwise the first failure cancels the rest
// and is returned as *ItemError.
func (s *Service) ExecuteBatch(ctx context.Context, invs []Invocation, opts BatchOptions) ([]model.Item, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultBatchConcurrency
	}

	results := make([][]model.Item, len(invs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, inv := range invs {
		g.Go(func() error {
			data, err := s.Execute(gctx, inv)
			if err != nil {
				if opts.ContinueOnFail {
					results[i] = []model.Item{{
						"error":      redact.Sanitize(err.Error()),
						"pairedItem": i,
					}}
					return nil
				}
				return &ItemError{Index: i, Err: err}
			}
			results[i] = FanOut(data)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("jetnet.batch_failed", zap.Int("items", len(invs)), zap.Error(err))
		return nil, err
	}

	var out []model.Item
	for _, items := range results {
		out = append(out, items...)
	}
	return out, nil
}

// FanOut turns a normalized payload into output items: one per array
// element (or page item), one for an object, {value: x} for a primitive and
// an empty item for nil.
func FanOut(data any) []model.Item {
	switch v := data.(type) {
	case nil:
		return []model.Item{{}}
	case Page:
		return fanOutSlice(v.Items)
	case []any:
		return fanOutSlice(v)
	case map[string]any:
		return []model.Item{model.Item(v)}
	default:
		return []model.Item{{"value": v}}
	}
}

func fanOutSlice(elems []any) []model.Item {
	out := make([]model.Item, 0, len(elems))
	for _, el := range elems {
		if obj, ok := el.(map[string]any); ok {
			out = append(out, model.Item(obj))
			continue
		}
		out = append(out, model.Item{"value": el})
	}
	return out
}

// WarmSession makes sure account holds a session valid beyond the expiry
// buffer, logging in when it does not.
func (s *Service) WarmSession(ctx context.Context, account string) error {
	account = s.account(account)
	creds, err := s.creds.Resolve(ctx, account)
	if err != nil {
		return &CredentialsMissingError{Account: account, cause: err}
	}
	if !creds.Complete() {
		return &CredentialsMissingError{Account: account}
	}
	_, err = s.sessions.GetTokens(ctx, creds, false)
	return err
}

// Accounts lists the accounts to keep warm: discovered ones when an
// AccountLister is configured, else the default account.
func (s *Service) Accounts(ctx context.Context) ([]string, error) {
	if s.accounts == nil {
		return []string{s.defaultAccount}, nil
	}
	return s.accounts.DiscoverAccounts(ctx)
}

func (s *Service) account(a string) string {
	if a == "" {
		return s.defaultAccount
	}
	return a
}

func (s *Service) record(ctx context.Context, rec audit.CallRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.logger.Warn("jetnet.audit_failed",
			zap.String("resource", rec.Resource),
			zap.String("operation", rec.Operation),
			zap.Error(err))
	}
}

// Warm implements jobs.SessionWarmer.
func (s *Service) Warm(ctx context.Context, account string) error {
	return s.WarmSession(ctx, account)
}
