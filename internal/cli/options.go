package cli

import (
	"io"
	"log/slog"
	"time"
)

// Env carries the process streams and logger into a command.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Logger *slog.Logger
	// Interactive enables the console gate. Set when stdin is a terminal.
	Interactive bool
	// Width wraps rendered markdown.
	Width int
}

// StoreOptions selects where runs are persisted.
type StoreOptions struct {
	RedisURL string
	// TTL expires stored runs. Zero keeps them.
	TTL time.Duration
	// EncryptionKey, base64 of 32 bytes, encrypts stored runs.
	EncryptionKey string
	// Redact masks stored Context values whose key matches one of these patterns.
	Redact []string
}

// RunOptions configures the run command.
type RunOptions struct {
	FlowPath    string
	WorkersPath string
	Context     string // Raw JSON object
	Store       StoreOptions

	// Resume continues a parked run instead of starting one.
	Resume      string
	Instruction string
	Exit        bool

	// Gate pauses after every transition, through the console or by parking the run.
	Gate bool
	JSON bool
}

// DelegateOptions configures the delegate command.
type DelegateOptions struct {
	WorkersPath string
	Goal        string
	Context     string
	Store       StoreOptions
	MaxRounds   int

	Resume      string
	Instruction string
	Exit        bool

	Gate bool
	JSON bool
}

// ServeOptions configures the serve and mcp commands.
type ServeOptions struct {
	FlowPath    string
	WorkersPath string
	Store       StoreOptions
	// Gate parks every run after each transition until feedback is posted.
	Gate bool

	Addr      string
	Transport string // mcp only: stdio or sse
	Port      int    // mcp only
}
