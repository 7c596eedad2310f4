package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// TraceKind classifies a trace record.
type TraceKind string

const (
	TraceStep       TraceKind = "step"
	TraceTransition TraceKind = "transition"
	TraceDecision   TraceKind = "decision"
	TraceWorker     TraceKind = "worker"
	TraceFeedback   TraceKind = "feedback"
	TraceSummary    TraceKind = "summary"
)

// TraceRecord is one plain, serializable entry of a Run's execution log.
type TraceRecord struct {
	Seq       int       `json:"seq"`
	Kind      TraceKind `json:"kind"`
	Name      string    `json:"name"`
	Input     any       `json:"input,omitempty"`
	Output    any       `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteTrace exports records as newline-delimited JSON.
func WriteTrace(w io.Writer, records []TraceRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode trace record %d: %w", rec.Seq, err)
		}
	}
	return nil
}
