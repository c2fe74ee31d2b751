package api

import (
	"crypto/subtle"
	"encoding/base64"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteOptions struct {
	AdminUser      string
	AdminPassword  string
	RateLimit      int
	MetricsEnabled bool
}

func SetupRoutes(app *fiber.App, handler *Handler, opts RouteOptions) {
	// Global middlewares
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health checks (sem rate limiting)
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	if opts.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter(opts.RateLimit))
	if opts.MetricsEnabled {
		v1.Use(PrometheusMiddleware())
	}

	// Cálculo sem estado sobre o histórico enviado no corpo
	v1.Post("/compute", handler.Compute)

	// Histórico armazenado
	v1.Get("/ledger", handler.GetLedger)
	v1.Get("/lots", handler.GetOpenLots)
	v1.Get("/aggregate", handler.GetAggregate)
	v1.Get("/years", handler.GetYears)

	forms := v1.Group("/forms")
	forms.Get("/:year", handler.GetForm)
	forms.Get("/:year/estimate", handler.GetEstimate)

	exports := v1.Group("/export")
	exports.Get("/capital_gains.csv", handler.ExportCSV)
	exports.Get("/forms/:year/json", handler.ExportFormJSON)
	exports.Get("/forms/:year/html", handler.ExportFormHTML)

	admin := v1.Group("/admin")
	admin.Use(BasicAuth(opts.AdminUser, opts.AdminPassword))
	admin.Post("/load", handler.LoadData)
	admin.Delete("/cache/:pattern", handler.InvalidateCache)
	admin.Get("/stats", handler.GetSystemStats)
}

// BasicAuth protege as rotas de administração. Sem senha configurada, tudo
// é recusado.
func BasicAuth(user, password string) fiber.Handler {
	expected := []byte("Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password)))

	return func(c *fiber.Ctx) error {
		auth := []byte(c.Get(fiber.HeaderAuthorization))
		if password == "" || subtle.ConstantTimeCompare(auth, expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
