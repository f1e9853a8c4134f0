package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aviation-connect/adapters/internal/store"
)

// RegisterRoutes registers all HTTP routes on the Fiber app. nc and st are
// optional; a nil dependency is reported as "disabled" rather than degraded.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, h *JetNetHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		switch {
		case nc == nil:
			checks["nats"] = "disabled"
		case !nc.IsConnected():
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		default:
			if err := nc.FlushTimeout(1 * time.Second); err != nil {
				checks["nats"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		if st == nil {
			checks["store"] = "disabled"
		} else {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := st.HealthCheck(healthCtx); err != nil {
				checks["store"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")
	v1.Get("/operations", h.ListOperations)
	v1.Post("/operations/:resource/:operation", h.ExecuteOperation)
	v1.Post("/tools/:resource/:operation", h.ExecuteTool)
}
