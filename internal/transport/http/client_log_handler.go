package http

import (
	"log/slog"
	"net/http"

	"respondkit/internal/middleware"
	"respondkit/internal/respond"
)

// ClientLogHandler forwards log entries reported by browser clients into
// the server log.
type ClientLogHandler struct {
	validator *middleware.Validator
	logger    *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(validator *middleware.Validator, logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		validator: validator,
		logger:    logger.With(slog.String("handler", "client_log")),
	}
}

// LogRequest represents a client log entry
type LogRequest struct {
	Level   string         `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Message string         `json:"message" validate:"required,max=2048"`
	Data    map[string]any `json:"data,omitempty"`
	Source  string         `json:"source,omitempty" validate:"max=256"`
}

var clientLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Handle handles POST /client-logs and answers 202 with an empty envelope
func (h *ClientLogHandler) Handle(c *respond.Context) error {
	var req LogRequest
	if err := h.validator.Decode(c.Request(), &req); err != nil {
		return err
	}

	level, ok := clientLevels[req.Level]
	if !ok {
		level = slog.LevelInfo
	}

	attrs := []slog.Attr{slog.String("client_source", req.Source)}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}
	h.logger.LogAttrs(c.Context(), level, req.Message, attrs...)

	return c.RespondEmpty(http.StatusAccepted)
}
