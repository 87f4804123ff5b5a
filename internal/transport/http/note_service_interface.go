package http

import (
	"context"

	"respondkit/internal/services"
)

// NoteServiceInterface defines the note operations the handlers need
type NoteServiceInterface interface {
	Create(ctx context.Context, in services.NoteInput) (services.Note, error)
	Get(ctx context.Context, id string) (services.Note, error)
	List(ctx context.Context, filter services.NoteFilter) ([]services.Note, error)
	Update(ctx context.Context, id string, in services.NoteInput) (services.Note, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	TagCounts(ctx context.Context) ([]services.TagCount, error)
}

// HealthServiceInterface defines the health operations the handlers need
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) (services.HealthStatus, error)
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]any
}
