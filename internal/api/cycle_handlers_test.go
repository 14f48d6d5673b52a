package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/storage"
)

type mockLookup struct {
	record fragment.CycleRecord
	err    error
}

func (m *mockLookup) Lookup(_ context.Context, id string) (fragment.CycleRecord, error) {
	if m.err != nil {
		return fragment.CycleRecord{}, m.err
	}
	if id != m.record.ID {
		return fragment.CycleRecord{}, fmt.Errorf("lookup %q: %w", id, storage.ErrNotFound)
	}
	return m.record, nil
}

func serveCycle(h *CycleHandler, id string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/v1/cycles/{cycle_id}", h.GetCycle)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cycles/"+id, nil))
	return rec
}

func TestCycleHandlerGetCycle(t *testing.T) {
	t.Parallel()

	lookup := &mockLookup{record: fragment.CycleRecord{
		ID:        "c-1",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Threshold: 0.7,
		Result:    fragment.EmptyResult(),
	}}
	rec := serveCycle(NewCycleHandler(lookup, zap.NewNop()), "c-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"c-1"`)
	require.Contains(t, rec.Body.String(), `"absorbed":[]`)
}

func TestCycleHandlerNotFound(t *testing.T) {
	t.Parallel()

	rec := serveCycle(NewCycleHandler(&mockLookup{}, nil), "missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCycleHandlerStoreError(t *testing.T) {
	t.Parallel()

	rec := serveCycle(NewCycleHandler(&mockLookup{err: errors.New("connection reset")}, zap.NewNop()), "c-1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection reset")
}

func TestCycleHandlerUnavailable(t *testing.T) {
	t.Parallel()

	rec := serveCycle(NewCycleHandler(nil, zap.NewNop()), "c-1")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
