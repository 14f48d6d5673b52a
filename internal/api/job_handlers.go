package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/queue"
	"github.com/JakeFAU/harpoon/internal/wire"
)

// JobQueue accepts background cycles. *dispatcher.Dispatcher satisfies it.
type JobQueue interface {
	Submit(ctx context.Context, fragments []fragment.Input, threshold float64, maxIterations *int) (queue.Status, error)
	Status(jobID string) (queue.Status, bool)
}

// Option customizes a Server.
type Option func(*Server)

// WithJobs enables the /v1/jobs routes.
func WithJobs(jobs JobQueue) Option {
	return func(s *Server) {
		s.jobs = jobs
	}
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "background jobs are disabled")
		return
	}
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	req, err := wire.DecodeCycleRequest(data)
	if err != nil {
		writeShapeError(w, err)
		return
	}
	threshold, limit := req.Resolve(s.cfg.Cycle.DefaultThreshold, s.defaultMaxIterations())

	status, err := s.jobs.Submit(r.Context(), req.Fragments, threshold, limit)
	if err != nil {
		s.logger.Warn("job submit failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "job queue unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "job submit failed")
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+status.JobID)
	writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "background jobs are disabled")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	status, ok := s.jobs.Status(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
