package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/project-radar/backend/internal/config"
	"github.com/project-radar/backend/internal/models"
)

type stubStore struct {
	projects []models.Project
	err      error
	gotLimit int
}

func (s *stubStore) RecentProjects(_ context.Context, limit int) ([]models.Project, error) {
	s.gotLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.projects) {
		return s.projects[:limit], nil
	}
	return s.projects, nil
}

func (s *stubStore) Health(_ context.Context) error {
	return s.err
}

func newTestServer(store *stubStore, limit int) *server {
	return &server{
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:   &config.API{RecentLimit: limit},
		store: store,
	}
}

func TestHandleProjectsNewestFirstBounded(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &stubStore{}
	for i := 0; i < 5; i++ {
		store.projects = append(store.projects, models.Project{
			Slug:        string(rune('a' + i)),
			ProcessedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}

	srv := newTestServer(store, 3)
	rec := httptest.NewRecorder()
	srv.handleProjects(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, store.gotLimit)

	var got []models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	require.Equal(t, "a", got[0].Slug)
	require.True(t, got[0].ProcessedAt.After(got[1].ProcessedAt))
}

func TestHandleProjectsStorageFailure(t *testing.T) {
	srv := newTestServer(&stubStore{err: errors.New("search failed")}, 50)

	rec := httptest.NewRecorder()
	srv.handleProjects(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Error)
}

func TestHandleProjectsEmpty(t *testing.T) {
	srv := newTestServer(&stubStore{}, 50)

	rec := httptest.NewRecorder()
	srv.handleProjects(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}
