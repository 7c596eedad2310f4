package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SanitizeInput(strings.Repeat("a", DefaultMaxInputSize+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = SanitizeInput("bad \xff")
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	t.Setenv(EnvMaxInputSize, "3")
	_, err = SanitizeInput("four")
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestGate_RequestFeedback(t *testing.T) {
	in := strings.NewReader("tighten the intro\n\nexit\n\x1b\x1b\nrejected\n")
	var out bytes.Buffer
	g := NewGate(in, &out)
	ctx := context.Background()
	req := domain.FeedbackRequest{RunID: "r1", Mode: domain.ModeGraph, Position: "review"}

	fb, err := g.RequestFeedback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.Feedback{Instruction: "tighten the intro"}, fb)

	fb, err = g.RequestFeedback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.Feedback{}, fb, "an empty line continues")

	fb, err = g.RequestFeedback(ctx, req)
	require.NoError(t, err)
	assert.True(t, fb.Exit)

	fb, err = g.RequestFeedback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.Feedback{}, fb, "control characters are stripped")

	fb, err = g.RequestFeedback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "rejected", fb.Instruction)

	fb, err = g.RequestFeedback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.Feedback{}, fb, "end of input continues")

	assert.Contains(t, out.String(), "Run r1 paused at review")
}

func TestGate_RejectedInputPromptsAgain(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")
	var out bytes.Buffer
	g := NewGate(strings.NewReader("this line is far too long\nshort\n"), &out)

	fb, err := g.RequestFeedback(context.Background(), domain.FeedbackRequest{RunID: "r"})
	require.NoError(t, err)
	assert.Equal(t, "short", fb.Instruction)
	assert.Contains(t, out.String(), "Input rejected")
}

func TestGate_Cancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	g := NewGate(pr, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.RequestFeedback(ctx, domain.FeedbackRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_Renderer(t *testing.T) {
	var out bytes.Buffer
	g := NewGate(strings.NewReader("\n"), &out, WithRenderer(func(md string) (string, error) {
		return "RENDERED", nil
	}))
	_, err := g.RequestFeedback(context.Background(), domain.FeedbackRequest{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "RENDERED")
}

func TestSummary(t *testing.T) {
	md := Summary(domain.FeedbackRequest{
		RunID:    "r1",
		Mode:     domain.ModeDelegation,
		Position: "round 2",
		Transcript: []domain.TranscriptEntry{
			{Round: 1, Worker: "researcher", Task: "find facts", Result: "otters hold hands"},
		},
	})
	assert.Contains(t, md, "round 2")
	assert.Contains(t, md, "**researcher**")
	assert.Contains(t, md, "otters hold hands")

	md = Summary(domain.FeedbackRequest{RunID: "r2", Context: map[string]any{"b": 1, "a": 2}})
	assert.Contains(t, md, "Context keys: a, b")
}
