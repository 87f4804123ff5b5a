package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"respondkit/internal/config"
	apierrors "respondkit/internal/errors"
	"respondkit/internal/infrastructure"
	"respondkit/internal/middleware"
	"respondkit/internal/respond"
	"respondkit/internal/services"
	transport "respondkit/internal/transport/http"
)

// AppName identifies the service in logs and telemetry
const AppName = "respondkit"

var (
	// Version is set at link time
	Version = "dev"
	// BuildTime is set at link time
	BuildTime = ""
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.DispatchMetrics
	Dispatcher    *respond.Dispatcher
	Services      *ServiceContainer

	listener net.Listener
	closeLog func() error
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Notes  *services.NoteService
	Health *services.HealthService
}

type appOptions struct {
	stdout   io.Writer
	otelOpts []infrastructure.OTelOption
}

// Option customizes NewApplication
type Option func(*appOptions)

// WithStdout sends console log output to w
func WithStdout(w io.Writer) Option {
	return func(o *appOptions) { o.stdout = w }
}

// WithOTelOptions forwards options to infrastructure.InitializeOTel
func WithOTelOptions(opts ...infrastructure.OTelOption) Option {
	return func(o *appOptions) { o.otelOpts = append(o.otelOpts, opts...) }
}

// NewApplication wires logging, telemetry, the dispatcher, services and the
// router from cfg. Nothing listens until Start.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := appOptions{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	logger, closeLog, err := infrastructure.NewLogger(cfg.Logging, o.stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("environment", cfg.Telemetry.Environment))

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger, o.otelOpts...)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewDispatchMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		_ = closeLog()
		return nil, fmt.Errorf("failed to create dispatch metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		closeLog:      closeLog,
	}

	a.Dispatcher = respond.New(
		respond.WithSerializer(cfg.Envelope.Serializer()),
		respond.WithSuccessStatus(cfg.Envelope.SuccessStatus),
		respond.WithLogger(logger),
		respond.WithMetrics(metrics),
		respond.WithTracer(providers.Tracer),
	)

	a.initializeServices()
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() {
	notes := services.NewNoteService(a.Logger)

	health := services.NewHealthService(Version, BuildTime, a.Logger)
	health.Register("notes", func(ctx context.Context) error {
		_, err := notes.Count(ctx)
		return err
	})

	a.Services = &ServiceContainer{Notes: notes, Health: health}
}

// setupRouter builds the chi router.
// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → headers → rate limit → Timeout
func (a *Application) setupRouter() {
	d := a.Dispatcher
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)

	// Set before mounting so sub-routers inherit envelope 404/405 handlers
	r.NotFound(d.Handler(func(c *respond.Context) error {
		return apierrors.ErrNotFound.WithDetails(map[string]string{
			"path": c.Request().URL.Path,
		})
	}))
	r.MethodNotAllowed(d.Handler(func(c *respond.Context) error {
		return apierrors.ErrMethodNotAllowed.WithDetails(map[string]string{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
		})
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(middleware.StructuredLogger(a.Logger))
		r.Use(middleware.Recoverer(d, a.Logger))
		r.Use(middleware.SecurityHeaders)

		if rl := a.Config.RateLimit; rl.Enabled {
			r.Use(middleware.NewRateLimiter(rl.RPS, rl.Burst, d, a.Logger).Handler)
		}
		if timeout := a.Config.Server.RequestTimeout; timeout > 0 {
			r.Use(middleware.Timeout(timeout, d, a.Logger))
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus scrapes outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	d := a.Dispatcher
	validator := middleware.NewValidator(middleware.DefaultMaxBodySize)

	notes := transport.NewNoteHandler(a.Services.Notes, validator, d, a.Logger)
	health := transport.NewHealthHandler(a.Services.Health, d, a.Logger)
	clientLogs := transport.NewClientLogHandler(validator, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/notes", notes.Routes())
		r.Mount("/health", health.Routes())
		r.Get("/version", d.Reply(health.Version))
		r.With(middleware.RequireJSON(d)).Post("/client-logs", d.Handler(clientLogs.Handle))
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Start binds the listen address and serves in the background. A serve
// failure after startup is logged and cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Server error")
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound listen address, or the configured one before Start
func (a *Application) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.Server.Addr
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Error shutting down OpenTelemetry")
			errs = append(errs, err)
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if a.closeLog != nil {
		if err := a.closeLog(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log output: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	// Stop needs a live context; ctx is already done
	return a.Stop(context.Background())
}
