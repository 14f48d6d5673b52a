package engine

import (
	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/hygiene"
)

// runCycle is the sequential phase. states is owned by the call.
func runCycle(states []fragment.State, threshold float64, maxIterations *int) fragment.CycleResult {
	queue := make([]int, len(states))
	for i := range queue {
		queue[i] = i
	}

	var (
		iterations int
		absorbed   []int
		anchors    = make([]string, 0, len(states))
		events     = make([]fragment.CycleEvent, 0, len(states))
		lastAnchor *string
	)

	for len(queue) > 0 {
		// Hitting the cap leaves the head in place: no charge, no event.
		if maxIterations != nil && iterations >= *maxIterations {
			break
		}
		idx := queue[0]
		queue = queue[1:]
		iterations++

		state := &states[idx]
		score := hygiene.Score(state.Input.Body, state.Language)
		state.HygieneScore = &score

		event := fragment.CycleEvent{
			Path:           state.Input.Path,
			Idx:            state.Input.Idx,
			Lines:          state.Input.Lines,
			Hash:           state.Hash,
			HygieneScore:   score,
			Language:       string(state.Language),
			Fingerprint:    state.Fingerprint,
			IterationIndex: iterations,
		}

		if score >= threshold {
			state.Status = fragment.StatusAbsorbed
			absorbed = append(absorbed, idx)
			anchors = append(anchors, state.Hash)
			next := state.Hash
			event.Event = fragment.EventAbsorbed
			event.AnchorPrev = lastAnchor
			event.AnchorNext = &next
			lastAnchor = &next
		} else {
			state.Status = fragment.StatusRequeued
			event.Event = fragment.EventRequeued
			event.AnchorPrev = lastAnchor
			event.AnchorNext = lastAnchor
			queue = append(queue, idx)
		}
		events = append(events, event)
	}

	result := fragment.CycleResult{
		Absorbed:   make([]fragment.Report, 0, len(absorbed)),
		Pending:    make([]fragment.Report, 0, len(queue)),
		Events:     events,
		Iterations: iterations,
		Anchors:    anchors,
	}
	for _, idx := range absorbed {
		result.Absorbed = append(result.Absorbed, states[idx].Report())
	}
	for _, idx := range queue {
		result.Pending = append(result.Pending, states[idx].Report())
	}
	return result
}
