package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "respondkit/internal/errors"
	"respondkit/internal/middleware"
	"respondkit/internal/respond"
	"respondkit/internal/services"
)

// NoteHandler serves the notes resource. Every route runs through the
// dispatcher, so each request ends in exactly one envelope.
type NoteHandler struct {
	service    NoteServiceInterface
	validator  *middleware.Validator
	dispatcher *respond.Dispatcher
	logger     *slog.Logger
}

// NoteSummary is the body of GET /notes/summary
type NoteSummary struct {
	Total int                 `json:"total"`
	Tags  []services.TagCount `json:"tags"`
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(service NoteServiceInterface, validator *middleware.Validator, d *respond.Dispatcher, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		service:    service,
		validator:  validator,
		dispatcher: d,
		logger:     logger.With(slog.String("component", "note_handler")),
	}
}

// Routes returns the note routes
func (h *NoteHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(middleware.RequireJSON(h.dispatcher))

	r.Get("/", h.dispatcher.Handler(h.List))
	r.Post("/", h.dispatcher.Handler(h.Create))
	r.Get("/summary", h.dispatcher.Handler(h.Summary))

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.dispatcher.Reply(h.Get))
		r.Put("/", h.dispatcher.Handler(h.Update))
		r.Delete("/", h.dispatcher.Handler(h.Delete))
	})

	return r
}

// List handles GET /notes?tag=
func (h *NoteHandler) List(c *respond.Context) error {
	notes, err := h.service.List(c.Context(), services.NoteFilter{
		Tag: c.Request().URL.Query().Get("tag"),
	})
	if err != nil {
		return err
	}
	return respond.RespondSlice(c, http.StatusOK, notes)
}

// Create handles POST /notes
func (h *NoteHandler) Create(c *respond.Context) error {
	var in services.NoteInput
	if err := h.validator.Decode(c.Request(), &in); err != nil {
		return err
	}

	note, err := h.service.Create(c.Context(), in)
	if err != nil {
		return noteError(err)
	}
	return c.RespondObject(http.StatusCreated, note)
}

// Get handles GET /notes/{id}
func (h *NoteHandler) Get(ctx context.Context, r *http.Request) (respond.Reply, error) {
	note, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		return respond.Reply{}, noteError(err)
	}
	return respond.OK(note), nil
}

// Update handles PUT /notes/{id}
func (h *NoteHandler) Update(c *respond.Context) error {
	var in services.NoteInput
	if err := h.validator.Decode(c.Request(), &in); err != nil {
		return err
	}

	note, err := h.service.Update(c.Context(), chi.URLParam(c.Request(), "id"), in)
	if err != nil {
		return noteError(err)
	}
	return c.RespondObject(http.StatusOK, note)
}

// Delete handles DELETE /notes/{id}
func (h *NoteHandler) Delete(c *respond.Context) error {
	if err := h.service.Delete(c.Context(), chi.URLParam(c.Request(), "id")); err != nil {
		return noteError(err)
	}
	return c.RespondEmpty(http.StatusNoContent)
}

// Summary handles GET /notes/summary. The count and the tag breakdown are
// gathered concurrently.
func (h *NoteHandler) Summary(c *respond.Context) error {
	var summary NoteSummary

	c.Go(func(ctx context.Context) error {
		n, err := h.service.Count(ctx)
		summary.Total = n
		return err
	})
	c.Go(func(ctx context.Context) error {
		tags, err := h.service.TagCounts(ctx)
		summary.Tags = tags
		return err
	})
	if err := c.Wait(); err != nil {
		return err
	}

	return c.RespondObject(http.StatusOK, summary)
}

// noteError maps service errors to business errors. Anything unknown is
// returned as is and ends up a 500.
func noteError(err error) error {
	switch {
	case errors.Is(err, services.ErrNoteNotFound):
		return apierrors.NotFoundError("note").WithCause(err)
	case errors.Is(err, services.ErrNoteConflict):
		return apierrors.ErrConflict.WithDetails(err.Error()).WithCause(err)
	default:
		return err
	}
}
