package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/clock/system"
	"github.com/JakeFAU/harpoon/internal/dispatcher"
	"github.com/JakeFAU/harpoon/internal/engine"
	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/fusion"
	"github.com/JakeFAU/harpoon/internal/id/uuid"
	"github.com/JakeFAU/harpoon/internal/queue"
	"github.com/JakeFAU/harpoon/internal/queue/memory"
	memorystorage "github.com/JakeFAU/harpoon/internal/storage/memory"
)

func TestServer_JobsRoundTrip(t *testing.T) {
	t.Parallel()

	threads := 2
	eng, err := engine.New(engine.Options{NumThreads: &threads})
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	store, err := memorystorage.NewCycleStore(16)
	require.NoError(t, err)
	orch, err := fusion.New(eng, fusion.Config{}, fusion.Deps{Store: store})
	require.NoError(t, err)

	jobs, err := dispatcher.New(dispatcher.Config{Workers: 1, HistorySize: 16}, dispatcher.Deps{
		Queue:  memory.NewQueue(4),
		Runner: orch,
		Clock:  system.New(),
		IDs:    uuid.New(),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go jobs.Run(ctx)

	s := NewServer(orch, testConfig(), zap.NewNop(), WithJobs(jobs))

	body := `{"fragments": [{"path": "a.py", "idx": 0, "lines": "1-2", "body": "def f():\n    return 1\n"}], "hygiene_threshold": 0.5, "max_iterations": 3}`
	rec := do(t, s, http.MethodPost, "/v1/jobs", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode(t, rec)
	jobID, _ := accepted["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "/v1/jobs/"+jobID, rec.Header().Get("Location"))

	var final map[string]any
	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, "/v1/jobs/"+jobID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		final = decode(t, rec)
		return final["state"] == string(queue.StateSucceeded)
	}, 2*time.Second, 5*time.Millisecond)

	cycleID, _ := final["cycle_id"].(string)
	require.NotEmpty(t, cycleID)
	rec = do(t, s, http.MethodGet, "/v1/cycles/"+cycleID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/jobs", `{"fragments": 3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_JobsDisabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodPost, "/v1/jobs", `{"fragments": []}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(t, s, http.MethodGet, "/v1/jobs/abc", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type closedQueue struct{}

func (closedQueue) Submit(context.Context, []fragment.Input, float64, *int) (queue.Status, error) {
	return queue.Status{}, errors.Join(errors.New("queue enqueue"), queue.ErrClosed)
}

func (closedQueue) Status(string) (queue.Status, bool) { return queue.Status{}, false }

func TestServer_JobsQueueClosed(t *testing.T) {
	t.Parallel()

	threads := 1
	eng, err := engine.New(engine.Options{NumThreads: &threads})
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	orch, err := fusion.New(eng, fusion.Config{}, fusion.Deps{})
	require.NoError(t, err)

	s := NewServer(orch, testConfig(), zap.NewNop(), WithJobs(closedQueue{}))
	rec := do(t, s, http.MethodPost, "/v1/jobs", `{"fragments": []}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
