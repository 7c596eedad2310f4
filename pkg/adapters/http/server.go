package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/conductor/internal/presentation/mermaid"
	"github.com/aretw0/conductor/pkg/adapters/console"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of conductor.Engine the server drives.
type Engine interface {
	Graph() *graph.Graph
	Run(ctx context.Context, initial map[string]any) (*domain.Run, error)
	Resume(ctx context.Context, runID string, fb domain.Feedback) (*domain.Run, error)
	Load(ctx context.Context, runID string) (*domain.Run, error)
	Store() ports.RunStore
}

// Server exposes runs of one graph over HTTP.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	Version string

	gatherer prometheus.Gatherer
	logger   *slog.Logger
	maxBody  int64
}

const (
	// DefaultMaxBodyBytes bounds POST /runs bodies.
	DefaultMaxBodyBytes = 1 << 20
	// maxFeedbackBytes leaves room for JSON escaping around a sanitizer-sized instruction.
	maxFeedbackBytes = 16 << 10
)

// Option configures a Server.
type Option func(*Server)

// WithStreams serves GET /runs/{id}/events from sm. The engine must publish through sm.Hooks().
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics serves GET /metrics from g.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxBodyBytes bounds POST /runs bodies. Larger bodies are answered with 413.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// WithVersion is reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for the engine.
//
//	GET  /health
//	GET  /info
//	GET  /graph                  Mermaid flowchart (?format=json for the state list)
//	GET  /runs                   stored run IDs
//	POST /runs                   {"input": {...}} runs the graph to completion or the gate
//	GET  /runs/{id}              the run
//	GET  /runs/{id}/trace        trace records as NDJSON
//	GET  /runs/{id}/events       lifecycle events as SSE (WithStreams)
//	POST /runs/{id}/feedback     {"instruction": "...", "exit": false} resumes a parked run
//	GET  /metrics                Prometheus exposition (WithMetrics)
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, Version: "dev", logger: slog.Default(), maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.CreateRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.GetRun)
			r.Get("/trace", s.GetTrace)
			r.Get("/events", s.SubscribeEvents)
			r.Post("/feedback", s.PostFeedback)
		})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "conductor-http",
		"version": s.Version,
		"graph":   s.Engine.Graph().Name,
	})
}

type stateView struct {
	Name        string   `json:"name"`
	Steps       []string `json:"steps"`
	Conditional bool     `json:"conditional"`
	Targets     []string `json:"targets"`
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Engine.Graph()
	if r.URL.Query().Get("format") == "json" {
		states := make([]stateView, 0)
		for _, st := range g.States() {
			v := stateView{
				Name:        st.Name,
				Steps:       make([]string, 0, len(st.Steps)),
				Conditional: st.Transition.IsConditional(),
				Targets:     st.Transition.Targets(),
			}
			for _, step := range st.Steps {
				v.Steps = append(v.Steps, step.Name())
			}
			states = append(states, v)
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"name": g.Name, "entry": g.Entry, "states": states})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, mermaid.Generate(g, nil))
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	store := s.Engine.Store()
	if store == nil {
		s.writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids, err := store.List(r.Context())
	if err != nil {
		s.fail(w, "ListRuns", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

type createRunRequest struct {
	Input map[string]any `json:"input"`
}

// CreateRun handles POST /runs. Every run outcome answers 200 with the run, except a run
// parked by the gate, which answers 202.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body createRunRequest
	if r.ContentLength != 0 {
		if !s.decode(w, r, "CreateRun", s.maxBody, &body) {
			return
		}
	}

	run, err := s.Engine.Run(r.Context(), body.Input)
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if run == nil {
		s.fail(w, "CreateRun", err)
		return
	}
	if err != nil {
		s.logger.Info("CreateRun: Run ended with error", "run_id", run.ID, "status", run.Status, "err", err)
	}
	s.writeRun(w, run)
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// GetTrace handles GET /runs/{id}/trace.
func (s *Server) GetTrace(w http.ResponseWriter, r *http.Request) {
	run, ok := s.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := domain.WriteTrace(w, run.Trace); err != nil {
		s.logger.Error("GetTrace: write failed", "run_id", run.ID, "err", err)
	}
}

type feedbackRequest struct {
	Instruction string `json:"instruction"`
	Exit        bool   `json:"exit"`
}

// PostFeedback handles POST /runs/{id}/feedback.
func (s *Server) PostFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequest
	if !s.decode(w, r, "PostFeedback", maxFeedbackBytes, &body) {
		return
	}
	instruction, err := console.SanitizeInput(body.Instruction)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid instruction: %v", err), http.StatusBadRequest)
		s.logger.Warn("PostFeedback: Input rejected", "err", err, "size", len(body.Instruction))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := s.Engine.Resume(r.Context(), runID, domain.Feedback{Instruction: instruction, Exit: body.Exit})
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrNotAwaitingInput):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case run == nil:
		s.fail(w, "PostFeedback", err)
		return
	}
	s.writeRun(w, run)
}

// decode reads a JSON body of at most limit bytes into dst, answering 413 or 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		s.logger.Warn(op+": Request body too large", "limit", tooLarge.Limit)
		return false
	}
	http.Error(w, "Invalid request body", http.StatusBadRequest)
	s.logger.Warn(op+": Invalid request body", "err", err)
	return false
}

// SubscribeEvents handles GET /runs/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	if s.Streams == nil {
		http.Error(w, "Event streaming not enabled", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	runID := chi.URLParam(r, "runID")
	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*domain.Run, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := s.Engine.Load(r.Context(), runID)
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, fmt.Sprintf("run '%s' not found", runID), http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.fail(w, "Load", err)
		return nil, false
	}
	return run, true
}

func (s *Server) writeRun(w http.ResponseWriter, run *domain.Run) {
	status := http.StatusOK
	if run.Status == domain.StatusAwaitingInput {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, run)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
	s.logger.Error(op+" failed", "err", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
