package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageCycleStart Stage = "CYCLE_START"
	StageAbsorbed   Stage = "FRAGMENT_ABSORBED"
	StageRequeued   Stage = "FRAGMENT_REQUEUED"
	StageCycleDone  Stage = "CYCLE_DONE"
)

// Event captures one step of cycle progress.
type Event struct {
	// CycleID identifies the cycle using the 16-byte UUID form.
	CycleID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Fragment fields are set on absorb and requeue events.
	Path        string
	Idx         uint32
	Hash        string
	Fingerprint string
	Language    string
	Score       float64
	Iteration   int
	// Fragments is the batch size on CYCLE_START.
	Fragments int
	// Absorbed and Pending are the final tallies on CYCLE_DONE.
	Absorbed int
	Pending  int
	// Dur is the cycle wall time on CYCLE_DONE.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CycleID == [16]byte{} {
		return errors.New("cycle id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCycleStart:
		if e.Fragments < 0 {
			return errors.New("fragment count must be >= 0")
		}
	case StageAbsorbed, StageRequeued:
		if e.Hash == "" {
			return errors.New("fragment event requires hash")
		}
		if e.Iteration < 1 {
			return errors.New("fragment event requires iteration >= 1")
		}
	case StageCycleDone:
		if e.Absorbed < 0 || e.Pending < 0 {
			return errors.New("tallies must be >= 0")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CycleUUID converts the binary cycle ID to uuid.UUID.
func (e Event) CycleUUID() uuid.UUID {
	return uuid.UUID(e.CycleID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// FromCycleEvent maps one cycle log entry onto a progress event.
func FromCycleEvent(cycleID [16]byte, ts time.Time, evt fragment.CycleEvent) Event {
	stage := StageRequeued
	if evt.Event == fragment.EventAbsorbed {
		stage = StageAbsorbed
	}
	return Event{
		CycleID:     cycleID,
		TS:          ts,
		Stage:       stage,
		Path:        evt.Path,
		Idx:         evt.Idx,
		Hash:        evt.Hash,
		Fingerprint: evt.Fingerprint,
		Language:    evt.Language,
		Score:       evt.HygieneScore,
		Iteration:   evt.IterationIndex,
	}
}
