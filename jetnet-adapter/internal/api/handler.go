package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/jetnet"
	"github.com/aviation-connect/adapters/pkg/model"
	"github.com/aviation-connect/adapters/pkg/redact"
)

// OperationService is the subset of *jetnet.Service the handlers need.
type OperationService interface {
	Execute(ctx context.Context, inv jetnet.Invocation) (any, error)
	ExecuteTool(ctx context.Context, inv jetnet.Invocation) (*model.ToolResult, error)
	ExecuteBatch(ctx context.Context, invs []jetnet.Invocation, opts jetnet.BatchOptions) ([]model.Item, error)
	Catalog() *jetnet.Catalog
}

// JetNetHandler serves the operation and tool endpoints.
type JetNetHandler struct {
	logger           *zap.Logger
	service          OperationService
	batchConcurrency int
}

func NewJetNetHandler(logger *zap.Logger, service OperationService, batchConcurrency int) *JetNetHandler {
	return &JetNetHandler{
		logger:           logger,
		service:          service,
		batchConcurrency: batchConcurrency,
	}
}

// ListOperations handles GET /api/v1/operations.
func (h *JetNetHandler) ListOperations(c *fiber.Ctx) error {
	resources := h.service.Catalog().Resources()
	out := make([]ResourceInfo, 0, len(resources))
	for _, r := range resources {
		info := ResourceInfo{Resource: r.Name, Description: r.Description}
		for _, op := range r.Operations {
			info.Operations = append(info.Operations, OperationInfo{
				Operation:   op.Name,
				Method:      op.Method,
				Description: op.Description,
				Params:      op.PathParams(),
			})
		}
		out = append(out, info)
	}
	return c.JSON(out)
}

// ExecuteOperation handles POST /api/v1/operations/:resource/:operation.
func (h *JetNetHandler) ExecuteOperation(c *fiber.Ctx) error {
	resource, operation := c.Params("resource"), c.Params("operation")

	var req OperationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.UserContext()

	if len(req.Items) > 0 {
		invs := make([]jetnet.Invocation, len(req.Items))
		for i, it := range req.Items {
			invs[i] = jetnet.Invocation{
				Account:   req.Account,
				Resource:  resource,
				Operation: operation,
				Params:    it.Params,
				Fields:    it.Fields,
			}
		}
		items, err := h.service.ExecuteBatch(ctx, invs, jetnet.BatchOptions{
			Concurrency:    h.batchConcurrency,
			ContinueOnFail: req.ContinueOnFail,
		})
		if err != nil {
			return h.writeError(c, resource, operation, err)
		}
		return c.JSON(OperationResponse{Resource: resource, Operation: operation, Items: items})
	}

	data, err := h.service.Execute(ctx, jetnet.Invocation{
		Account:   req.Account,
		Resource:  resource,
		Operation: operation,
		Params:    req.Params,
		Fields:    req.Fields,
	})
	if err != nil {
		return h.writeError(c, resource, operation, err)
	}
	return c.JSON(OperationResponse{Resource: resource, Operation: operation, Data: data})
}

// ExecuteTool handles POST /api/v1/tools/:resource/:operation. Failures use
// the tool error shape so agent callers always receive a JSON object.
func (h *JetNetHandler) ExecuteTool(c *fiber.Ctx) error {
	resource, operation := c.Params("resource"), c.Params("operation")

	var req ToolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(model.ToolError{
				Error: "invalid request body", Resource: resource, Operation: operation,
			})
		}
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.ToolError{
			Error: err.Error(), Resource: resource, Operation: operation,
		})
	}

	res, err := h.service.ExecuteTool(c.UserContext(), jetnet.Invocation{
		Account:     req.Account,
		Resource:    resource,
		Operation:   operation,
		Params:      req.Params,
		Fields:      req.Fields,
		Description: req.Description,
	})
	if err != nil {
		code, _ := classify(err)
		h.logFailure(resource, operation, code, err)
		return c.Status(code).JSON(model.ToolError{
			Error:     redact.Sanitize(err.Error()),
			Resource:  resource,
			Operation: operation,
		})
	}
	return c.JSON(res)
}

func (h *JetNetHandler) writeError(c *fiber.Ctx, resource, operation string, err error) error {
	code, desc := classify(err)
	h.logFailure(resource, operation, code, err)

	resp := ErrorResponse{
		Error:       redact.Sanitize(err.Error()),
		Description: redact.Sanitize(desc),
		Resource:    resource,
		Operation:   operation,
	}
	var ie *jetnet.ItemError
	if errors.As(err, &ie) {
		idx := ie.Index
		resp.Item = &idx
	}
	return c.Status(code).JSON(resp)
}

func (h *JetNetHandler) logFailure(resource, operation string, code int, err error) {
	fields := []zap.Field{
		zap.String("resource", resource),
		zap.String("operation", operation),
		zap.Int("status", code),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("jetnet.operation_failed", fields...)
		return
	}
	h.logger.Warn("jetnet.operation_rejected", fields...)
}

// classify maps a service error to an HTTP status and an optional
// operator-facing description.
func classify(err error) (int, string) {
	var (
		paramErr *jetnet.ParamError
		credErr  *jetnet.CredentialsMissingError
		authErr  *auth.AuthenticationError
		apiErr   *jetnet.APIError
	)
	switch {
	case errors.Is(err, jetnet.ErrUnknownOperation):
		return fiber.StatusNotFound, ""
	case errors.As(err, &paramErr):
		return fiber.StatusBadRequest, ""
	case errors.As(err, &credErr):
		return fiber.StatusPreconditionFailed, credErr.Description()
	case errors.As(err, &authErr):
		return fiber.StatusBadGateway, authErr.Description
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Timeout():
			return fiber.StatusGatewayTimeout, apiErr.Description
		case apiErr.StatusCode == http.StatusNotFound:
			return fiber.StatusNotFound, apiErr.Description
		default:
			return fiber.StatusBadGateway, apiErr.Description
		}
	case errors.Is(err, context.Canceled):
		return fiber.StatusRequestTimeout, ""
	default:
		return fiber.StatusInternalServerError, ""
	}
}
