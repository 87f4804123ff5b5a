package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"respondkit/internal/middleware"
	"respondkit/internal/respond"
	"respondkit/internal/services"
	"respondkit/internal/shared/testutil"
)

const acceptedAtJSON = "2024-03-01T10:00:00Z"

// mockNoteService is a testify mock of NoteServiceInterface
type mockNoteService struct {
	mock.Mock
}

func (m *mockNoteService) Create(ctx context.Context, in services.NoteInput) (services.Note, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(services.Note), args.Error(1)
}

func (m *mockNoteService) Get(ctx context.Context, id string) (services.Note, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(services.Note), args.Error(1)
}

func (m *mockNoteService) List(ctx context.Context, filter services.NoteFilter) ([]services.Note, error) {
	args := m.Called(ctx, filter)
	notes, _ := args.Get(0).([]services.Note)
	return notes, args.Error(1)
}

func (m *mockNoteService) Update(ctx context.Context, id string, in services.NoteInput) (services.Note, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(services.Note), args.Error(1)
}

func (m *mockNoteService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockNoteService) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockNoteService) TagCounts(ctx context.Context) ([]services.TagCount, error) {
	args := m.Called(ctx)
	tags, _ := args.Get(0).([]services.TagCount)
	return tags, args.Error(1)
}

var (
	fixtureTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	fixtureNote = services.Note{
		ID:        "n-1",
		Title:     "milk",
		Tags:      []string{"home"},
		Version:   1,
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
)

const fixtureNoteJSON = `{"id":"n-1","title":"milk","tags":["home"],"version":1,"createdAt":"2024-03-01T09:00:00Z","updatedAt":"2024-03-01T09:00:00Z"}`

func newTestDispatcher(t *testing.T) (*respond.Dispatcher, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	d := respond.New(
		respond.WithLogger(logger),
		respond.WithClock(testutil.FixedClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))),
	)
	return d, logs
}

func newNoteRouter(t *testing.T, svc NoteServiceInterface) (chi.Router, *testutil.BufferedSlogHandler) {
	t.Helper()
	d, logs := newTestDispatcher(t)
	logger, _ := testutil.NewTestLogger(t)
	h := NewNoteHandler(svc, middleware.NewValidator(0), d, logger)

	r := chi.NewRouter()
	r.Mount("/notes", h.Routes())
	return r, logs
}

func TestNoteHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		setup      func(m *mockNoteService)
		wantStatus int
		wantBody   string
	}{
		{
			name:   "list",
			method: http.MethodGet,
			path:   "/notes?tag=home",
			setup: func(m *mockNoteService) {
				m.On("List", mock.Anything, services.NoteFilter{Tag: "home"}).Return([]services.Note{fixtureNote}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","result":[` + fixtureNoteJSON + `]}`,
		},
		{
			name:   "list of nothing is an empty array",
			method: http.MethodGet,
			path:   "/notes",
			setup: func(m *mockNoteService) {
				m.On("List", mock.Anything, services.NoteFilter{}).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","result":[]}`,
		},
		{
			name:   "create",
			method: http.MethodPost,
			path:   "/notes",
			body:   `{"title":"milk","tags":["home"]}`,
			setup: func(m *mockNoteService) {
				m.On("Create", mock.Anything, services.NoteInput{Title: "milk", Tags: []string{"home"}}).Return(fixtureNote, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","result":` + fixtureNoteJSON + `}`,
		},
		{
			name:       "create with a blank title",
			method:     http.MethodPost,
			path:       "/notes",
			body:       `{"title":"  "}`,
			wantStatus: http.StatusBadRequest,
			wantBody: `{"acceptedAt":"` + acceptedAtJSON + `","message":"Request validation failed","code":"VALIDATION_FAILED",` +
				`"detail":{"errors":[{"field":"title","message":"title failed notblank validation"}]}}`,
		},
		{
			name:       "create with malformed json",
			method:     http.MethodPost,
			path:       "/notes",
			body:       `{"title":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","message":"Invalid request format","code":"INVALID_REQUEST","detail":"unexpected EOF"}`,
		},
		{
			name:   "get",
			method: http.MethodGet,
			path:   "/notes/n-1",
			setup: func(m *mockNoteService) {
				m.On("Get", mock.Anything, "n-1").Return(fixtureNote, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","result":` + fixtureNoteJSON + `}`,
		},
		{
			name:   "get missing",
			method: http.MethodGet,
			path:   "/notes/nope",
			setup: func(m *mockNoteService) {
				m.On("Get", mock.Anything, "nope").Return(services.Note{}, fmt.Errorf("get nope: %w", services.ErrNoteNotFound))
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","message":"note not found","code":"NOT_FOUND","detail":"note"}`,
		},
		{
			name:   "update conflict",
			method: http.MethodPut,
			path:   "/notes/n-1",
			body:   `{"title":"milk","version":3}`,
			setup: func(m *mockNoteService) {
				m.On("Update", mock.Anything, "n-1", services.NoteInput{Title: "milk", Version: 3}).
					Return(services.Note{}, fmt.Errorf("stale: %w", services.ErrNoteConflict))
			},
			wantStatus: http.StatusConflict,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","message":"Resource conflict","code":"CONFLICT","detail":"stale: note was modified concurrently"}`,
		},
		{
			name:   "delete",
			method: http.MethodDelete,
			path:   "/notes/n-1",
			setup: func(m *mockNoteService) {
				m.On("Delete", mock.Anything, "n-1").Return(nil)
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name:   "summary",
			method: http.MethodGet,
			path:   "/notes/summary",
			setup: func(m *mockNoteService) {
				m.On("Count", mock.Anything).Return(2, nil)
				m.On("TagCounts", mock.Anything).Return([]services.TagCount{{Tag: "home", Count: 2}}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","result":{"total":2,"tags":[{"tag":"home","count":2}]}}`,
		},
		{
			name:   "summary with a failing store",
			method: http.MethodGet,
			path:   "/notes/summary",
			setup: func(m *mockNoteService) {
				m.On("Count", mock.Anything).Return(0, errors.New("store offline"))
				m.On("TagCounts", mock.Anything).Return(nil, nil).Maybe()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"acceptedAt":"` + acceptedAtJSON + `","message":"store offline","code":"INTERNAL_SERVER_ERROR"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockNoteService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			router, _ := newNoteRouter(t, svc)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody == "" {
				assert.Empty(t, rec.Body.String())
			} else {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestNoteHandler_RejectsNonJSONBodies(t *testing.T) {
	svc := new(mockNoteService)
	router, _ := newNoteRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("title=milk"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNSUPPORTED_MEDIA_TYPE"`)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNoteHandler_ErrorsAreLogged(t *testing.T) {
	svc := new(mockNoteService)
	svc.On("Get", mock.Anything, "nope").Return(services.Note{}, services.ErrNoteNotFound)
	router, logs := newNoteRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	entry, ok := logs.Find("request failed")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusNotFound), entry.Attr("status"))
	assert.Equal(t, "NOT_FOUND", entry.Attr("code"))
	assert.Equal(t, "/notes/nope", entry.Attr("path"))
}

func TestNoteHandler_WithRealService(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	router, _ := newNoteRouter(t, services.NewNoteService(logger))

	post := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"title":"milk","tags":["Home"]}`))
	post.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, post)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tags":["home"]`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"acceptedAt":"`+acceptedAtJSON+`","result":{"total":1,"tags":[{"tag":"home","count":1}]}}`, rec.Body.String())
}
