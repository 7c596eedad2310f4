package domain

import "time"

// RunStatus is the lifecycle status of a Run.
type RunStatus string

const (
	StatusRunning       RunStatus = "running"
	StatusSucceeded     RunStatus = "succeeded"
	StatusFailed        RunStatus = "failed"
	StatusCancelled     RunStatus = "cancelled"
	StatusAwaitingInput RunStatus = "awaiting_input" // Parked by the feedback gate, resumable
)

// Terminal reports whether no further progress is possible without a new Run.
func (s RunStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// RunMode identifies the driving loop.
type RunMode string

const (
	ModeGraph      RunMode = "graph"
	ModeDelegation RunMode = "delegation"
)

// TranscriptEntry is one delegate round as seen by the decision maker.
// The final answer is not an entry; it is stored on Run.Answer.
type TranscriptEntry struct {
	Round  int    `json:"round"`
	Worker string `json:"worker,omitempty"`
	Task   string `json:"task,omitempty"`
	Result any    `json:"result,omitempty"`
	// Error is set when the round could not be executed (e.g. unknown worker).
	Error string `json:"error,omitempty"`
}

// Run is one execution instance of either driving loop.
type Run struct {
	ID     string    `json:"id"`
	Mode   RunMode   `json:"mode"`
	Status RunStatus `json:"status"`

	// Initial is the entry state (graph mode) and Current the state to execute next.
	Initial string `json:"initial,omitempty"`
	Current string `json:"current,omitempty"`
	// Goal is the delegation goal.
	Goal string `json:"goal,omitempty"`

	Context *Context `json:"context"`

	// Steps counts executed steps (graph) or decision rounds (delegation). Never decreases.
	Steps int `json:"steps"`
	// Transitions counts resolved state transitions.
	Transitions int `json:"transitions"`
	// History lists visited states in order.
	History []string `json:"history,omitempty"`

	Transcript []TranscriptEntry `json:"transcript,omitempty"`
	Answer     any               `json:"answer,omitempty"`
	Trace      []TraceRecord     `json:"trace,omitempty"`

	// Error holds the text of the error that ended the run.
	Error string `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRun creates a running Run. A nil context starts empty.
func NewRun(id string, mode RunMode, c *Context) *Run {
	if c == nil {
		c = NewContext()
	}
	now := time.Now().UTC()
	return &Run{
		ID:        id,
		Mode:      mode,
		Status:    StatusRunning,
		Context:   c,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes UpdatedAt.
func (r *Run) Touch() {
	r.UpdatedAt = time.Now().UTC()
}

// Record appends a trace record, assigning its sequence number and timestamp.
func (r *Run) Record(rec TraceRecord) {
	rec.Seq = len(r.Trace) + 1
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	r.Trace = append(r.Trace, rec)
}

// Clone returns a copy that shares values but not the Context key space or slices.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	next := *r
	next.Context = r.Context.Clone()
	next.History = append([]string(nil), r.History...)
	next.Transcript = append([]TranscriptEntry(nil), r.Transcript...)
	next.Trace = append([]TraceRecord(nil), r.Trace...)
	return &next
}
