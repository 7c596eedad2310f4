package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownState is returned when a run reaches a state that is not registered.
	ErrUnknownState = errors.New("unknown state")
	// ErrInvalidTransition is returned when a decision function leaves its allow-set.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrIterationLimitExceeded is returned when a graph run hits the iteration ceiling.
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")
	// ErrMaxRoundsExceeded is returned when a delegation run hits its round bound.
	ErrMaxRoundsExceeded = errors.New("max rounds exceeded")
	// ErrUnknownWorker is reported when a decision names a worker that is not registered.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrDecisionParse is returned when decision text does not match the decision schema.
	ErrDecisionParse = errors.New("malformed decision")
	// ErrMissingContext is returned when a step requires keys the Context does not hold.
	ErrMissingContext = errors.New("missing context keys")
	// ErrStepTimeout is returned when a step or round outlives its configured timeout.
	ErrStepTimeout = errors.New("step timed out")
	// ErrFeedbackPending is returned by feedback sources that cannot answer synchronously.
	ErrFeedbackPending = errors.New("feedback pending")
	// ErrRunNotFound is returned when a run ID cannot be found in the store.
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidGraph is returned when a graph fails structural validation.
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrNotAwaitingInput is returned when resuming a run the gate did not park.
	ErrNotAwaitingInput = errors.New("run is not awaiting input")
	// ErrInvalidInput is returned when run input does not match the declared input schema.
	ErrInvalidInput = errors.New("invalid input")
)

// UnknownStateError reports a state name with no registration.
type UnknownStateError struct {
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state '%s'", e.State)
}

func (e *UnknownStateError) Is(target error) bool { return target == ErrUnknownState }

// InvalidTransitionError reports a resolved target outside the declared allow-set.
type InvalidTransitionError struct {
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("state '%s' resolved to '%s', allowed: [%s]", e.From, e.To, strings.Join(e.Allowed, ", "))
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// IterationLimitError reports the configured ceiling that was hit.
type IterationLimitError struct {
	Limit int
	State string
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit %d exceeded at state '%s'", e.Limit, e.State)
}

func (e *IterationLimitError) Is(target error) bool { return target == ErrIterationLimitExceeded }

// MaxRoundsError reports the configured round bound that was hit.
type MaxRoundsError struct {
	Limit int
}

func (e *MaxRoundsError) Error() string {
	return fmt.Sprintf("delegation exceeded %d rounds", e.Limit)
}

func (e *MaxRoundsError) Is(target error) bool { return target == ErrMaxRoundsExceeded }

// UnknownWorkerError reports a delegate decision against an unregistered worker.
type UnknownWorkerError struct {
	Worker string
}

func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("unknown worker '%s'", e.Worker)
}

func (e *UnknownWorkerError) Is(target error) bool { return target == ErrUnknownWorker }

// DecisionParseError carries the offending text.
type DecisionParseError struct {
	Text  string
	Cause error
}

func (e *DecisionParseError) Error() string {
	return fmt.Sprintf("malformed decision: %v", e.Cause)
}

func (e *DecisionParseError) Unwrap() error { return e.Cause }

func (e *DecisionParseError) Is(target error) bool { return target == ErrDecisionParse }

// MissingContextError represents a failure to meet a step's context requirements.
type MissingContextError struct {
	State       string
	Step        string
	MissingKeys []string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("step '%s' in state '%s' requires context keys that are missing: %v", e.Step, e.State, e.MissingKeys)
}

func (e *MissingContextError) Is(target error) bool { return target == ErrMissingContext }

// StepError wraps a failure raised by a step or worker.
type StepError struct {
	State string
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("worker '%s' failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step '%s' in state '%s' failed: %v", e.Step, e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StepTimeoutError reports a step or round that outlived its deadline.
type StepTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("'%s' timed out after %s", e.Name, e.Timeout)
}

func (e *StepTimeoutError) Is(target error) bool { return target == ErrStepTimeout }
