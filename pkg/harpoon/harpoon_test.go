package harpoon_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harpoon/pkg/harpoon"
)

const (
	pyFunc     = "def f():\n    return 1\n"
	pyFuncHash = "554c70065a66824f65e036709800854b75f5bf94b69932fdde85d53a3238b555"
)

func intPtr(v int) *int { return &v }

func newEngine(t *testing.T, opts harpoon.Options) *harpoon.Engine {
	t.Helper()
	eng, err := harpoon.New(opts)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

func TestNewRejectsZeroThreads(t *testing.T) {
	t.Parallel()

	_, err := harpoon.New(harpoon.Options{NumThreads: intPtr(0)})
	require.ErrorIs(t, err, harpoon.ErrZeroThreads)
}

func TestRunCycleMatchesEnvelope(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, harpoon.Options{NumThreads: intPtr(3)})
	fragments := []harpoon.Fragment{
		{Path: "a.py", Idx: 0, Lines: "1-2", Body: pyFunc},
		{Path: "notes.txt", Idx: 1, Lines: "1", Body: "x"},
	}
	direct := eng.RunCycle(fragments, 0.5, intPtr(3))

	input, err := json.Marshal(fragments)
	require.NoError(t, err)
	envelope, err := eng.EnvelopeCycle(input, 0.5, intPtr(3))
	require.NoError(t, err)

	want, err := json.Marshal(direct)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(envelope))
	assert.Equal(t, 3, direct.Iterations)
	assert.Equal(t, []string{pyFuncHash}, direct.Anchors)
}

func TestEnvelopeCycleDefaultCap(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, harpoon.Options{NumThreads: intPtr(1)})
	out, err := eng.EnvelopeCycle([]byte(`[{"path": "n.txt", "idx": 0, "lines": "", "body": "x"}]`), 2.0, nil)
	require.NoError(t, err)

	var result harpoon.CycleResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, harpoon.DefaultMaxIterations, result.Iterations)
	assert.Len(t, result.Pending, 1)
}

func TestEnvelopeCycleShapeErrors(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, harpoon.Options{})
	_, err := eng.EnvelopeCycle([]byte(`[{"path": "a", "idx": "0", "lines": "", "body": ""}]`), 0.7, nil)
	require.True(t, errors.Is(err, harpoon.ErrShape))

	_, err = eng.EnvelopeCycle([]byte(`[]`), 0.7, intPtr(-1))
	require.ErrorIs(t, err, harpoon.ErrShape)

	out, err := eng.EnvelopeCycle([]byte(`[]`), 0.7, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"absorbed":[],"pending":[],"events":[],"iterations":0,"anchors":[]}`, string(out))
}

func TestIdentityHelpers(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, harpoon.Options{})
	assert.Equal(t, pyFuncHash, harpoon.Hash(pyFunc))
	assert.Equal(t, harpoon.Hash(pyFunc), eng.FragmentHash(pyFunc))
	assert.Equal(t, "VUxwBlpmgk9l4DZw", harpoon.Fingerprint(pyFunc))
	assert.Equal(t, harpoon.Fingerprint(pyFunc), eng.Fingerprint(pyFunc))
	assert.Nil(t, eng.ConfiguredThreads())
	assert.GreaterOrEqual(t, eng.ThreadCount(), 1)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, harpoon.Options{})
	result := eng.RunCycle([]harpoon.Fragment{{Path: "a.py", Body: pyFunc}}, 0.5, nil)
	summary := harpoon.Summarize(result)
	assert.Equal(t, 1, summary.AbsorbedCount)
	require.NotNil(t, summary.HygieneScore)
	assert.InDelta(t, 0.5333, *summary.HygieneScore, 1e-4)
}
