package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/harpoon/internal/config"
	"github.com/JakeFAU/harpoon/internal/scheduler"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server:   config.ServerConfig{Port: 18080, RequestTimeoutSeconds: 5},
		Engine:   config.EngineConfig{MaxBatch: 16, NumThreads: 2, Scheduler: "auto"},
		Cycle:    config.CycleConfig{DefaultThreshold: 0.5, DefaultMaxIterations: 10},
		Jobs:     config.JobsConfig{Workers: 1, QueueSize: 4, HistorySize: 8},
		Storage:  config.StorageConfig{Provider: "memory", CacheSize: 8},
		Archive:  config.ArchiveConfig{Provider: "local", BaseDir: t.TempDir(), Prefix: "cycles"},
		Progress: config.ProgressConfig{BufferSize: 64, MaxBatchEvents: 8, MaxBatchWaitMs: 10},
	}
}

func TestBuildWiresCycleRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	app, err := build(context.Background(), cfg, "test", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	body := []byte(`{"fragments": [
		{"path": "a.py", "idx": 0, "lines": "1-2", "body": "def f():\n    return 1\n"},
		{"path": "notes.txt", "idx": 1, "lines": "1", "body": "x"}
	]}`)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/cycles", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		CycleID string `json:"cycle_id"`
		Result  struct {
			Iterations int      `json:"iterations"`
			Anchors    []string `json:"anchors"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.CycleID)
	assert.Equal(t, 10, out.Result.Iterations, "configured cap bounds the stuck fragment")
	assert.Len(t, out.Result.Anchors, 1)

	matches, err := filepath.Glob(filepath.Join(cfg.Archive.BaseDir, "cycles", "*", "*", "*", out.CycleID+".json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	archived, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(archived), `"iterations":10`)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cycles/"+out.CycleID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	stats := app.Orchestrator().Stats()
	assert.Equal(t, 1, stats.Cycles)
	assert.Equal(t, 2, stats.ThreadCount)

	require.NotNil(t, app.jobs)
	go app.jobs.Run(context.Background())
	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var job struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Eventually(t, func() bool {
		status, ok := app.jobs.Status(job.JobID)
		return ok && status.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, app.Orchestrator().Stats().Cycles)
}

func TestBuildRejectsUnknownScheduler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Scheduler = "bogus"

	var err error
	require.NotPanics(t, func() {
		_, err = build(context.Background(), cfg, "test", zaptest.NewLogger(t))
	})
	require.Error(t, err)
}

func TestBuildReturnsEngineConstructionError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.NumThreads = scheduler.MaxThreads + 1
	require.NoError(t, cfg.Validate())

	var (
		app *App
		err error
	)
	require.NotPanics(t, func() {
		app, err = build(context.Background(), cfg, "test", zaptest.NewLogger(t))
	})
	require.ErrorIs(t, err, scheduler.ErrPoolBuild)
	require.Nil(t, app)
}

func TestCloseOnNilApp(t *testing.T) {
	var app *App
	require.NoError(t, app.Close(context.Background()))
}
