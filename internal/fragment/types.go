package fragment

import "time"

// Language is the closed set of classification labels.
type Language string

// Supported language labels.
const (
	LanguagePython     Language = "python"
	LanguageRust       Language = "rust"
	LanguageTypeScript Language = "typescript"
	LanguageConfig     Language = "config"
	LanguageText       Language = "text"
)

// Status represents the lifecycle state of a fragment inside a cycle.
type Status string

// Fragment status values. Requeued fragments are logically still pending.
const (
	StatusPending  Status = "pending"
	StatusRequeued Status = "requeued"
	StatusAbsorbed Status = "absorbed"
)

// EventKind labels a CycleEvent.
type EventKind string

// Event kinds emitted by the cycle runner.
const (
	EventAbsorbed EventKind = "fragment_absorbed"
	EventRequeued EventKind = "fragment_requeued"
)

// Input is one unit of submitted text. Lines is an opaque descriptor and is
// never parsed.
type Input struct {
	Path  string `json:"path" yaml:"path"`
	Idx   uint32 `json:"idx" yaml:"idx"`
	Lines string `json:"lines" yaml:"lines"`
	Body  string `json:"body" yaml:"body"`
}

// State is the derived, engine-owned record for one fragment during a cycle.
type State struct {
	Input        Input
	Hash         string
	Fingerprint  string
	Language     Language
	HygieneScore *float64
	Status       Status
}

// Report copies the externally visible fields of the state.
func (s State) Report() Report {
	var score *float64
	if s.HygieneScore != nil {
		v := *s.HygieneScore
		score = &v
	}
	return Report{
		Path:         s.Input.Path,
		Idx:          s.Input.Idx,
		Lines:        s.Input.Lines,
		Hash:         s.Hash,
		HygieneScore: score,
		Language:     string(s.Language),
		Fingerprint:  s.Fingerprint,
		BodyLen:      len(s.Input.Body),
	}
}

// Report is the per-fragment entry of a CycleResult.
type Report struct {
	Path         string   `json:"path"`
	Idx          uint32   `json:"idx"`
	Lines        string   `json:"lines"`
	Hash         string   `json:"hash"`
	HygieneScore *float64 `json:"hygiene_score"`
	Language     string   `json:"language"`
	Fingerprint  string   `json:"fingerprint"`
	BodyLen      int      `json:"body_len"`
}

// CycleEvent is one immutable entry of the cycle log. AnchorPrev and
// AnchorNext are equal on a requeue.
type CycleEvent struct {
	Event          EventKind `json:"event"`
	Path           string    `json:"path"`
	Idx            uint32    `json:"idx"`
	Lines          string    `json:"lines"`
	Hash           string    `json:"hash"`
	HygieneScore   float64   `json:"hygiene_score"`
	AnchorPrev     *string   `json:"anchor_prev"`
	AnchorNext     *string   `json:"anchor_next"`
	Language       string    `json:"language"`
	Fingerprint    string    `json:"fingerprint"`
	IterationIndex int       `json:"iteration_index"`
}

// CycleResult is the final aggregate of one cycle.
// len(Anchors) always equals len(Absorbed).
type CycleResult struct {
	Absorbed   []Report     `json:"absorbed"`
	Pending    []Report     `json:"pending"`
	Events     []CycleEvent `json:"events"`
	Iterations int          `json:"iterations"`
	Anchors    []string     `json:"anchors"`
}

// EmptyResult returns a zeroed result whose lists encode as [] rather than null.
func EmptyResult() CycleResult {
	return CycleResult{
		Absorbed: []Report{},
		Pending:  []Report{},
		Events:   []CycleEvent{},
		Anchors:  []string{},
	}
}

// Summary is the condensed view of a cycle consumed by orchestration layers.
// HygieneScore is the mean score of absorbed fragments, nil when none were.
type Summary struct {
	AbsorbedCount int      `json:"absorbed_count"`
	PendingCount  int      `json:"pending_count"`
	Anchors       []string `json:"anchors"`
	HygieneScore  *float64 `json:"hygiene_score"`
	Iterations    int      `json:"iterations"`
}

// Summarize condenses a result.
func Summarize(result CycleResult) Summary {
	summary := Summary{
		AbsorbedCount: len(result.Absorbed),
		PendingCount:  len(result.Pending),
		Anchors:       append([]string{}, result.Anchors...),
		Iterations:    result.Iterations,
	}
	if len(result.Absorbed) == 0 {
		return summary
	}
	var sum float64
	for _, report := range result.Absorbed {
		if report.HygieneScore != nil {
			sum += *report.HygieneScore
		}
	}
	mean := sum / float64(len(result.Absorbed))
	summary.HygieneScore = &mean
	return summary
}

// CycleRecord is what the service layer persists for each executed cycle.
type CycleRecord struct {
	ID            string      `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	Threshold     float64     `json:"hygiene_threshold"`
	MaxIterations *int        `json:"max_iterations,omitempty"`
	Summary       Summary     `json:"summary"`
	Result        CycleResult `json:"result"`
}
