package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"google.golang.org/api/option"

	"rosterlink/internal/cache"
	"rosterlink/internal/canvas"
	"rosterlink/internal/config"
	"rosterlink/internal/errors"
	"rosterlink/internal/ingest"
	"rosterlink/internal/infrastructure"
	customMiddleware "rosterlink/internal/middleware"
	"rosterlink/internal/reconcile"
	"rosterlink/internal/services"
	handlers "rosterlink/internal/transport/http"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	SystemMetrics *infrastructure.SystemMetrics
	Cache         *cache.MemoryCache
	ErrorHandler  *errors.ErrorHandler
	Validator     *customMiddleware.Validator
	Services      *ServiceContainer
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Reconcile *services.ReconciliationService
	Grading   *services.GradingService
	Health    *services.HealthService

	// Canvas and Sheet are nil when the source is not configured.
	Canvas *canvas.Client
	Sheet  *ingest.SheetsSource
}

// NewApplication loads configuration and the process logger, then wires
// the application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return NewWithConfig(ctx, cfg, logger)
}

// NewWithConfig wires the application from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  errors.NewErrorHandler(logger, false),
		Validator:     customMiddleware.NewValidator(logger),
	}

	if otelProviders.Meter != nil {
		metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create business metrics: %w", err)
		}
		app.Metrics = metrics
	}

	if err := app.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if otelProviders.Meter != nil {
		systemMetrics, err := infrastructure.RegisterSystemMetrics(otelProviders.Meter, infrastructure.SystemMetricsOptions{
			CacheEntries: func() int { return app.Cache.GetStats().Entries },
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register system metrics: %w", err)
		}
		app.SystemMetrics = systemMetrics
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context) error {
	a.Cache = cache.NewMemoryCache(a.Config.Cache.TTL, a.Config.Cache.MaxEntries)
	container := &ServiceContainer{}

	// Interfaces stay nil when a source is off so services can tell.
	var canvasAPI services.CanvasAPI
	if a.Config.Canvas.Enabled() {
		client, err := canvas.NewClient(canvas.Config{
			BaseURL:           a.Config.Canvas.BaseURL,
			Token:             a.Config.Canvas.Token,
			RequestsPerSecond: a.Config.Canvas.RequestsPerSecond,
			Burst:             a.Config.Canvas.Burst,
			Timeout:           a.Config.Canvas.Timeout,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create canvas client: %w", err)
		}
		container.Canvas = client
		canvasAPI = client
	} else {
		a.Logger.Warn("Canvas is not configured, course endpoints are unavailable")
	}

	var sheet services.RegistrationSheet
	if a.Config.Sheets.Enabled() {
		src, err := a.openSheet(ctx)
		if err != nil {
			return err
		}
		container.Sheet = src
		sheet = src
	}

	reconciler := reconcile.New(reconcile.Options{
		Threshold:           a.Config.Matching.Threshold,
		ShortSessionMinutes: a.Config.Matching.ShortSessionMinutes,
		MaxNameLength:       a.Config.Matching.MaxNameLength,
		Logger:              a.Logger,
	})

	container.Reconcile = services.NewReconciliationService(reconciler, canvasAPI, sheet, a.Cache, a.Metrics, a.Logger)
	container.Grading = services.NewGradingService(canvasAPI, a.Cache, a.Config.Canvas.MaxSubmissionPages, a.Metrics, a.Logger)
	container.Health = services.NewHealthService(services.HealthOptions{
		Version:          config.AppVersion,
		CanvasConfigured: canvasAPI != nil,
		SheetsConfigured: sheet != nil,
		Cache:            a.Cache,
	}, a.Logger)

	a.Services = container
	return nil
}

// openSheet connects the registration sheet. Without a credentials file the
// client falls back to application default credentials.
func (a *Application) openSheet(ctx context.Context) (*ingest.SheetsSource, error) {
	var opts []option.ClientOption
	if path := a.Config.Sheets.CredentialsFile; path != "" {
		credentialsJSON, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewConfigError("failed to read sheets credentials", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	src, err := ingest.NewSheetsSource(ctx, a.Config.Sheets.SpreadsheetID, a.Config.Sheets.Range, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open registration sheet: %w", err)
	}
	return src, nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.Metrics, a.Logger).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Scrapes bypass rate limiting and timeouts.
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		r.Group(func(r chi.Router) {
			if rl := a.Config.Security.RateLimit; rl.Enabled {
				r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger, a.ErrorHandler).Handler)
			}
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
			r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxBodyBytes))

			reconcileHandler := handlers.NewReconcileHandler(a.Services.Reconcile, a.Validator, a.ErrorHandler, a.Logger)
			r.Mount("/reconcile", reconcileHandler.Routes())

			courseHandler := handlers.NewCourseHandler(a.Services.Grading, a.Validator, a.ErrorHandler, a.Logger)
			r.Mount("/courses", courseHandler.Routes())
		})
	})

	a.Router = r
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server in the background. A listener failure calls
// cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	ready := a.Services.Health.ReadinessCheck(ctx)
	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)),
		slog.String("readiness", ready.Status),
		slog.Any("services", ready.Services))
	return nil
}

// Stop shuts the server down and releases background resources.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	a.Close(shutdownCtx)
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Close stops the cache janitor and flushes telemetry. It is used directly
// by commands that never start the server.
func (a *Application) Close(ctx context.Context) {
	if a.Cache != nil {
		a.Cache.Stop()
	}
	if err := a.SystemMetrics.Unregister(); err != nil {
		a.Logger.WarnContext(ctx, "Error unregistering system metrics", slog.String("error", err.Error()))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}

// Run starts the server and blocks until SIGINT, SIGTERM or a server error.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// ctx may already be cancelled; give shutdown its own deadline.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
