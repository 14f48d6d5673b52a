package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/storage"
)

const lookupTimeout = 3 * time.Second

// CycleLookup reads persisted cycles.
type CycleLookup interface {
	Lookup(ctx context.Context, id string) (fragment.CycleRecord, error)
}

// CycleHandler exposes read-only cycle endpoints.
type CycleHandler struct {
	lookup  CycleLookup
	timeout time.Duration
	logger  *zap.Logger
}

// NewCycleHandler wires the lookup and logger.
func NewCycleHandler(lookup CycleLookup, logger *zap.Logger) *CycleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleHandler{
		lookup:  lookup,
		timeout: lookupTimeout,
		logger:  logger,
	}
}

// GetCycle handles GET /v1/cycles/{cycle_id}. It returns the stored record,
// 404 when the cycle is unknown, 503 when no lookup is wired, or 500 if the
// store call fails.
func (h *CycleHandler) GetCycle(w http.ResponseWriter, r *http.Request) {
	if h.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "cycle store unavailable")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "cycle_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "cycle_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	record, err := h.lookup.Lookup(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "cycle not found")
		return
	case err != nil:
		h.logger.Error("get cycle failed", zap.String("cycle_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load cycle")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
