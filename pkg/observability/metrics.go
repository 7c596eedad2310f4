package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "conductor"

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	StateVisits     *prometheus.CounterVec
	StepDuration    *prometheus.HistogramVec
	Transitions     *prometheus.CounterVec
	Decisions       *prometheus.CounterVec
	WorkerDuration  *prometheus.HistogramVec
	FeedbackActions *prometheus.CounterVec
	Runs            *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		StateVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "state_visits_total",
			Help:      "Total number of graph state executions.",
		}, []string{"state"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of steps inside graph states.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state", "step", "error"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transitions_total",
			Help:      "Total number of resolved transitions.",
		}, []string{"from", "to"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decisions_total",
			Help:      "Total number of delegation decisions, by kind and parse outcome.",
		}, []string{"kind", "error"}),
		WorkerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "worker_duration_seconds",
			Help:      "Duration of delegated worker rounds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"worker", "error"}),
		FeedbackActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "feedback_total",
			Help:      "Total number of feedback answers, by action.",
		}, []string{"action"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Total number of runs that stopped, by mode and status.",
		}, []string{"mode", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from the start of a run to the moment it stopped.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"mode"}),
	}

	for _, c := range []prometheus.Collector{
		m.StateVisits, m.StepDuration, m.Transitions, m.Decisions,
		m.WorkerDuration, m.FeedbackActions, m.Runs, m.RunDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			m.StateVisits.WithLabelValues(e.State).Inc()
		},
		OnStepDone: func(ctx context.Context, e *domain.StepEvent) {
			m.StepDuration.WithLabelValues(e.State, e.Step, strconv.FormatBool(e.IsError)).Observe(e.Duration.Seconds())
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.From, e.To).Inc()
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			m.Decisions.WithLabelValues(string(e.Decision.Kind), strconv.FormatBool(e.IsError)).Inc()
		},
		OnWorkerReturn: func(ctx context.Context, e *domain.WorkerEvent) {
			m.WorkerDuration.WithLabelValues(e.Worker, strconv.FormatBool(e.IsError)).Observe(e.Duration.Seconds())
		},
		OnFeedback: func(ctx context.Context, e *domain.FeedbackEvent) {
			m.FeedbackActions.WithLabelValues(feedbackAction(e.Feedback)).Inc()
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(string(e.Mode), string(e.Status)).Inc()
			m.RunDuration.WithLabelValues(string(e.Mode)).Observe(e.Duration.Seconds())
		},
	}
}

func feedbackAction(fb domain.Feedback) string {
	switch {
	case fb.Exit:
		return "exit"
	case fb.Instruction != "":
		return "instruction"
	default:
		return "continue"
	}
}
