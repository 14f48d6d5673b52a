package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/config"
	"github.com/JakeFAU/harpoon/internal/fusion"
	"github.com/JakeFAU/harpoon/internal/metrics"
	"github.com/JakeFAU/harpoon/internal/policy/ratelimit"
	"github.com/JakeFAU/harpoon/internal/wire"
)

const (
	maxBodyBytes          = 32 << 20
	defaultRequestTimeout = 60 * time.Second
)

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router chi.Router
	orch   *fusion.Orchestrator
	cycles *CycleHandler
	jobs   JobQueue
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(orch *fusion.Orchestrator, cfg config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	var lookup CycleLookup
	if orch != nil {
		lookup = orch
	}
	s := &Server{
		orch:   orch,
		cycles: NewCycleHandler(lookup, logger.Named("cycles")),
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	timeout := cfg.Server.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		limiter := ratelimit.New(ratelimit.Config{
			RPS:   cfg.RateLimit.RequestsPerSecond,
			Burst: cfg.RateLimit.Burst,
		})
		if limiter.Enabled() {
			r.Use(rateLimitMiddleware(limiter))
		}
		r.Post("/cycles", s.submitCycle)
		r.Get("/cycles/{cycle_id}", s.cycles.GetCycle)
		r.Post("/jobs", s.submitJob)
		r.Get("/jobs/{job_id}", s.getJob)
		r.Post("/hash", s.hash)
		r.Post("/fingerprint", s.fingerprint)
		r.Post("/score", s.score)
		r.Get("/engine", s.engineInfo)
		r.Get("/stats", s.stats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.orch == nil || s.orch.Engine().ThreadCount() < 1 {
		writeError(w, http.StatusServiceUnavailable, "engine unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type cycleResponse struct {
	wire.CycleResponse
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) submitCycle(w http.ResponseWriter, r *http.Request) {
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

	outcome, err := s.orch.Process(r.Context(), req.Fragments, threshold, limit)
	if outcome.CycleID == "" {
		s.logger.Error("cycle failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cycle failed")
		return
	}
	resp := cycleResponse{CycleResponse: outcome.Response()}
	if err != nil {
		resp.Warnings = []string{err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) defaultMaxIterations() int {
	if s.cfg.Cycle.DefaultMaxIterations > 0 {
		return s.cfg.Cycle.DefaultMaxIterations
	}
	return wire.DefaultMaxIterations
}

func (s *Server) hash(w http.ResponseWriter, r *http.Request) {
	req, ok := s.bodyRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hash": s.orch.Engine().Hash(req.Body)})
}

func (s *Server) fingerprint(w http.ResponseWriter, r *http.Request) {
	req, ok := s.bodyRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fingerprint": s.orch.Engine().Fingerprint(req.Body)})
}

func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	req, ok := s.bodyRequest(w, r)
	if !ok {
		return
	}
	lang, breakdown := s.orch.Engine().Score(req.Path, req.Body)
	writeJSON(w, http.StatusOK, map[string]any{
		"language":      lang,
		"hygiene_score": breakdown.Score,
		"breakdown":     breakdown,
	})
}

func (s *Server) engineInfo(w http.ResponseWriter, _ *http.Request) {
	eng := s.orch.Engine()
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_count":       eng.ThreadCount(),
		"configured_threads": eng.ConfiguredThreads(),
		"max_batch":          eng.MaxBatch(),
		"scheduler":          eng.Mode(),
	})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Stats())
}

func (s *Server) bodyRequest(w http.ResponseWriter, r *http.Request) (wire.BodyRequest, bool) {
	data, ok := s.readBody(w, r)
	if !ok {
		return wire.BodyRequest{}, false
	}
	req, err := wire.DecodeBodyRequest(data)
	if err != nil {
		writeShapeError(w, err)
		return wire.BodyRequest{}, false
	}
	return req, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "read body failed")
		return nil, false
	}
	return data, true
}

func writeShapeError(w http.ResponseWriter, err error) {
	payload := map[string]string{"error": err.Error()}
	var shape *wire.ShapeError
	if errors.As(err, &shape) && shape.Field != "" {
		payload["field"] = shape.Field
	}
	writeJSON(w, http.StatusBadRequest, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
