package domain

import "fmt"

// WorkerDescriptor is what the decision maker sees of a worker.
type WorkerDescriptor struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name"`
	Summary string `json:"summary" yaml:"summary" mapstructure:"summary"`
}

// DecisionKind tags a Decision.
type DecisionKind string

const (
	DecisionDelegate DecisionKind = "delegate"
	DecisionFinal    DecisionKind = "final"
)

// Decision is the controller's per-round choice: hand off to a worker or finish.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Worker string       `json:"worker,omitempty"`
	Task   string       `json:"task,omitempty"`
	Answer any          `json:"answer,omitempty"`
}

// Delegate builds a delegate decision.
func Delegate(worker, task string) Decision {
	return Decision{Kind: DecisionDelegate, Worker: worker, Task: task}
}

// Final builds a final decision.
func Final(answer any) Decision {
	return Decision{Kind: DecisionFinal, Answer: answer}
}

func (d Decision) String() string {
	if d.Kind == DecisionFinal {
		return fmt.Sprintf("final(%v)", d.Answer)
	}
	return fmt.Sprintf("delegate(%s, %q)", d.Worker, d.Task)
}

// DecisionRequest is the per-round input handed to the decision maker.
type DecisionRequest struct {
	Goal       string             `json:"goal"`
	Workers    []WorkerDescriptor `json:"workers"`
	Transcript []TranscriptEntry  `json:"transcript"`
	// Instruction is the latest feedback injected through the gate, if any.
	Instruction string `json:"instruction,omitempty"`
	// Corrective is set when the previous answer for this round could not be parsed.
	Corrective string `json:"corrective,omitempty"`
}

// Feedback is what an external actor returns through the gate.
type Feedback struct {
	Instruction string `json:"instruction,omitempty"`
	Exit        bool   `json:"exit,omitempty"`
}

// FeedbackRequest is the snapshot shown to the external actor.
type FeedbackRequest struct {
	RunID      string            `json:"run_id"`
	Mode       RunMode           `json:"mode"`
	Position   string            `json:"position"`
	Context    map[string]any    `json:"context"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
	Answer     any               `json:"answer,omitempty"`
}
