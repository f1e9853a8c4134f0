package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/jetnet"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/metrics"
	"github.com/aviation-connect/adapters/pkg/model"
	"github.com/aviation-connect/adapters/pkg/redact"
)

// OperationService is the subset of *jetnet.Service queue consumers need.
type OperationService interface {
	Execute(ctx context.Context, inv jetnet.Invocation) (any, error)
	ExecuteBatch(ctx context.Context, invs []jetnet.Invocation, opts jetnet.BatchOptions) ([]model.Item, error)
}

// Dispatcher turns an OperationCommand into an OperationResult. It is shared
// by the NATS and RabbitMQ consumers.
type Dispatcher struct {
	logger      *zap.Logger
	service     OperationService
	concurrency int
	now         func() time.Time
}

func NewDispatcher(logger *zap.Logger, service OperationService, concurrency int) *Dispatcher {
	return &Dispatcher{
		logger:      logger,
		service:     service,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Dispatch runs cmd. Failures are reported in the result, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd model.OperationCommand) model.OperationResult {
	res := model.OperationResult{Resource: cmd.Resource, Operation: cmd.Operation}

	var (
		items []model.Item
		err   error
	)
	if len(cmd.Items) > 0 {
		invs := make([]jetnet.Invocation, len(cmd.Items))
		for i, it := range cmd.Items {
			invs[i] = jetnet.Invocation{
				Account:   cmd.Account,
				Resource:  cmd.Resource,
				Operation: cmd.Operation,
				Params:    it.Params,
				Fields:    it.Fields,
			}
		}
		items, err = d.service.ExecuteBatch(ctx, invs, jetnet.BatchOptions{
			Concurrency:    d.concurrency,
			ContinueOnFail: cmd.ContinueOnFail,
		})
	} else {
		var data any
		data, err = d.service.Execute(ctx, jetnet.Invocation{
			Account:   cmd.Account,
			Resource:  cmd.Resource,
			Operation: cmd.Operation,
			Params:    cmd.Params,
			Fields:    cmd.Fields,
		})
		if err == nil {
			items = jetnet.FanOut(data)
		}
	}

	if err != nil {
		metrics.IncError("dispatcher", "operation_failed")
		d.logger.Warn("jetnet.command_failed",
			zap.String("resource", cmd.Resource),
			zap.String("operation", cmd.Operation),
			zap.Error(err))
		res.Error = redact.Sanitize(err.Error())
	} else {
		res.Items = items
	}
	res.Completed = d.now().UTC()
	return res
}
