// Package server assembles the Fiber application: global middleware, API routes,
// the metrics endpoint and the Swagger UI.
package server

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagehost/docs"
	"imagehost/internal/config"
	handlers "imagehost/internal/http/handler"
	"imagehost/internal/http/middleware"
	"imagehost/internal/service"
	"imagehost/internal/storage"
)

// Deps are the collaborators the HTTP layer needs. UploadLimiter may be nil.
type Deps struct {
	Config        *config.AppConfig
	Logger        *slog.Logger
	Store         storage.Storage
	Images        service.ImageService
	UploadLimiter fiber.Handler
	Registry      *prometheus.Registry
}

// New builds the application. Middleware order matters: recover wraps everything so
// panics reach the error handler, and the request id is set before anything logs.
func New(d Deps) (*fiber.App, error) {
	if d.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if d.Registry == nil {
		return nil, errors.New("server: metrics registry is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	promMiddleware, err := middleware.NewPrometheusMiddleware(d.Registry)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               d.Config.AppName,
		ErrorHandler:          handlers.ErrorHandler(logger),
		BodyLimit:             d.Config.MaxUploadBytes,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())
	app.Use(cors.New())

	handlers.RegisterRoutes(app, d.Store, d.Images, d.Config.PublicURL, d.UploadLimiter)

	app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app, nil
}
