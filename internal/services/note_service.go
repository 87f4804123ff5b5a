package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Note is the example resource served by the notes API
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Tags      []string  `json:"tags"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteInput carries the client-editable fields of a note
type NoteInput struct {
	Title string   `json:"title" validate:"required,notblank,max=120"`
	Body  string   `json:"body" validate:"max=4096"`
	Tags  []string `json:"tags" validate:"max=10,dive,required,max=32"`
	// Version, when set on update, must match the stored version
	Version int `json:"version,omitempty" validate:"gte=0"`
}

// NoteFilter narrows List
type NoteFilter struct {
	Tag string
}

// TagCount is one row of the tag summary
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// NoteService keeps notes in memory. It is safe for concurrent use.
type NoteService struct {
	mu     sync.RWMutex
	notes  map[string]Note
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewNoteService creates an empty note store
func NewNoteService(logger *slog.Logger) *NoteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteService{
		notes:  make(map[string]Note),
		clock:  time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: logger.With(slog.String("service", "notes")),
	}
}

// Create stores a new note
func (s *NoteService) Create(ctx context.Context, in NoteInput) (Note, error) {
	now := s.clock().UTC()
	note := Note{
		ID:        s.newID(),
		Title:     strings.TrimSpace(in.Title),
		Body:      in.Body,
		Tags:      normalizeTags(in.Tags),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.notes[note.ID] = note
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "note created", slog.String("note_id", note.ID))
	return note, nil
}

// Get returns the note with id
func (s *NoteService) Get(ctx context.Context, id string) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok {
		return Note{}, fmt.Errorf("get %s: %w", id, ErrNoteNotFound)
	}
	return note, nil
}

// List returns the notes matching filter, oldest first
func (s *NoteService) List(ctx context.Context, filter NoteFilter) ([]Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		if filter.Tag != "" && !hasTag(n, filter.Tag) {
			continue
		}
		out = append(out, n)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces the editable fields of note id, tags included: omitted
// tags clear the note's tags. A non-zero in.Version must match the stored
// version.
func (s *NoteService) Update(ctx context.Context, id string, in NoteInput) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return Note{}, fmt.Errorf("update %s: %w", id, ErrNoteNotFound)
	}
	if in.Version != 0 && in.Version != note.Version {
		return Note{}, fmt.Errorf("update %s at version %d, stored %d: %w", id, in.Version, note.Version, ErrNoteConflict)
	}

	note.Title = strings.TrimSpace(in.Title)
	note.Body = in.Body
	note.Tags = normalizeTags(in.Tags)
	note.Version++
	note.UpdatedAt = s.clock().UTC()
	s.notes[id] = note

	s.logger.DebugContext(ctx, "note updated", slog.String("note_id", id), slog.Int("version", note.Version))
	return note, nil
}

// Delete removes note id
func (s *NoteService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNoteNotFound)
	}
	delete(s.notes, id)

	s.logger.DebugContext(ctx, "note deleted", slog.String("note_id", id))
	return nil
}

// Count returns the number of stored notes
func (s *NoteService) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes), nil
}

// TagCounts returns how many notes carry each tag, most used first
func (s *NoteService) TagCounts(ctx context.Context) ([]TagCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	s.mu.RLock()
	for _, n := range s.notes {
		for _, tag := range n.Tags {
			counts[tag]++
		}
	}
	s.mu.RUnlock()

	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Tag < out[j].Tag
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func hasTag(n Note, tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
