package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "respondkit/internal/errors"
	"respondkit/internal/respond"
	"respondkit/internal/services"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	service    HealthServiceInterface
	dispatcher *respond.Dispatcher
	logger     *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service HealthServiceInterface, d *respond.Dispatcher, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service:    service,
		dispatcher: d,
		logger:     logger.With(slog.String("handler", "health")),
	}
}

// Routes returns the health routes
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.dispatcher.Reply(h.HealthCheck))
	r.Get("/ready", h.dispatcher.Reply(h.ReadinessCheck))
	r.Get("/live", h.dispatcher.Reply(h.LivenessCheck))
	r.Head("/live", h.dispatcher.Handler(h.Ping))
	return r
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(ctx context.Context, r *http.Request) (respond.Reply, error) {
	return respond.OK(h.service.HealthCheck(ctx)), nil
}

// ReadinessCheck handles GET /health/ready. A failed check answers 503 with
// the per-check report as the error detail.
func (h *HealthHandler) ReadinessCheck(ctx context.Context, r *http.Request) (respond.Reply, error) {
	status, err := h.service.ReadinessCheck(ctx)
	if errors.Is(err, services.ErrNotReady) {
		return respond.Reply{}, apierrors.ErrServiceUnavailable.WithDetails(status).WithCause(err)
	}
	if err != nil {
		return respond.Reply{}, err
	}
	return respond.OK(status), nil
}

// LivenessCheck handles GET /health/live
func (h *HealthHandler) LivenessCheck(ctx context.Context, r *http.Request) (respond.Reply, error) {
	return respond.OK(h.service.LivenessCheck(ctx)), nil
}

// Ping handles HEAD /health/live with a bodiless 204
func (h *HealthHandler) Ping(c *respond.Context) error {
	return c.RespondEmpty(http.StatusNoContent)
}

// Version handles GET /version
func (h *HealthHandler) Version(ctx context.Context, r *http.Request) (respond.Reply, error) {
	return respond.OK(h.service.Version()), nil
}
