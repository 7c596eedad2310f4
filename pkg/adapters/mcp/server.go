package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/presentation/mermaid"
	"github.com/aretw0/conductor/pkg/adapters/console"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// GraphURI is the resource exposing the graph as a Mermaid flowchart.
const GraphURI = "conductor://graph"

// RunResponse is the structured result of every run tool.
type RunResponse struct {
	ID         string                   `json:"id" jsonschema_description:"Run identifier"`
	Mode       string                   `json:"mode" jsonschema_description:"graph or delegation"`
	Status     string                   `json:"status" jsonschema_description:"running, succeeded, failed, cancelled or awaiting_input"`
	Current    string                   `json:"current,omitempty" jsonschema_description:"State the run is at"`
	History    []string                 `json:"history,omitempty" jsonschema_description:"Executed states, in order"`
	Context    map[string]any           `json:"context" jsonschema_description:"Run context"`
	Transcript []domain.TranscriptEntry `json:"transcript,omitempty" jsonschema_description:"Delegate rounds"`
	Answer     any                      `json:"answer,omitempty" jsonschema_description:"Final answer of a delegation run"`
	Error      string                   `json:"error,omitempty" jsonschema_description:"Failure reason"`
}

func newRunResponse(run *domain.Run) RunResponse {
	resp := RunResponse{
		ID:         run.ID,
		Mode:       string(run.Mode),
		Status:     string(run.Status),
		Current:    run.Current,
		History:    run.History,
		Transcript: run.Transcript,
		Answer:     run.Answer,
		Error:      run.Error,
		Context:    map[string]any{},
	}
	if run.Context != nil {
		resp.Context = run.Context.Map()
	}
	return resp
}

// Engine is the graph engine surface the server drives. *conductor.Engine satisfies it.
type Engine interface {
	Graph() *graph.Graph
	Run(ctx context.Context, initial map[string]any) (*domain.Run, error)
	Resume(ctx context.Context, runID string, fb domain.Feedback) (*domain.Run, error)
	Load(ctx context.Context, runID string) (*domain.Run, error)
}

// Delegator is the delegation surface. *conductor.Delegator satisfies it.
type Delegator interface {
	Run(ctx context.Context, goal string, initial map[string]any) (*domain.Run, error)
}

// Server exposes a Conductor engine as an MCP server.
type Server struct {
	engine    Engine
	delegator Delegator
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithDelegator adds the delegate tool.
func WithDelegator(d Delegator) Option {
	return func(s *Server) {
		s.delegator = d
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("conductor-mcp", strings.TrimSpace(conductor.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_flow",
		mcp.WithDescription("Run the graph from its entry state until it ends or pauses for input."),
		mcp.WithString("input", mcp.Description("JSON object seeding the run context (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunFlow))

	resumeTool := mcp.NewTool("resume_run",
		mcp.WithDescription("Resume a run that is awaiting input."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
		mcp.WithString("instruction", mcp.Description("Instruction injected into the run context; EXIT stops the run")),
		mcp.WithBoolean("exit", mcp.Description("Stop the run instead of continuing")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	getTool := mcp.NewTool("get_run",
		mcp.WithDescription("Fetch a stored run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetRun))

	if s.delegator != nil {
		delegateTool := mcp.NewTool("delegate",
			mcp.WithDescription("Pursue a goal by letting the decision maker delegate to registered workers."),
			mcp.WithString("goal", mcp.Required(), mcp.Description("What the run should achieve")),
			mcp.WithString("input", mcp.Description("JSON object seeding the run context (optional)")),
			mcp.WithOutputSchema[RunResponse](),
		)
		s.mcpServer.AddTool(delegateTool, mcp.NewStructuredToolHandler(s.handleDelegate))
	}

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the graph as a Mermaid flowchart."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(mermaid.Generate(s.engine.Graph(), nil)), nil
	})
}

func parseInput(args map[string]any) (map[string]any, error) {
	raw, _ := args["input"].(string)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	return input, nil
}

// outcome reports a run that exists even when it ended with an error.
func outcome(tool string, run *domain.Run, err error) (RunResponse, error) {
	if run == nil {
		return RunResponse{}, fmt.Errorf("%s failed: %w", tool, err)
	}
	if err != nil {
		slog.Info("MCP run ended with error", "tool", tool, "run_id", run.ID, "status", run.Status, "error", err)
	}
	return newRunResponse(run), nil
}

func (s *Server) handleRunFlow(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	input, err := parseInput(args)
	if err != nil {
		return RunResponse{}, err
	}
	run, err := s.engine.Run(ctx, input)
	return outcome("run_flow", run, err)
}

func (s *Server) handleDelegate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	goal, _ := args["goal"].(string)
	if strings.TrimSpace(goal) == "" {
		return RunResponse{}, fmt.Errorf("goal is required")
	}
	input, err := parseInput(args)
	if err != nil {
		return RunResponse{}, err
	}
	run, err := s.delegator.Run(ctx, goal, input)
	return outcome("delegate", run, err)
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	runID, _ := args["run_id"].(string)
	instruction, _ := args["instruction"].(string)
	exit, _ := args["exit"].(bool)

	clean, err := console.SanitizeInput(instruction)
	if err != nil {
		slog.Warn("MCP Resume: Input rejected", "error", err, "size", len(instruction))
		return RunResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	run, err := s.engine.Resume(ctx, runID, domain.Feedback{Instruction: clean, Exit: exit})
	if errors.Is(err, domain.ErrRunNotFound) || errors.Is(err, domain.ErrNotAwaitingInput) {
		return RunResponse{}, err
	}
	return outcome("resume_run", run, err)
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	runID, _ := args["run_id"].(string)
	run, err := s.engine.Load(ctx, runID)
	if err != nil {
		return RunResponse{}, err
	}
	return newRunResponse(run), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Graph Definition",
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/vnd.mermaid",
				Text:     mermaid.Generate(s.engine.Graph(), nil),
			},
		}, nil
	})
}
