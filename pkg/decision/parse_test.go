package decision_test

import (
	"testing"

	"github.com/aretw0/conductor/pkg/decision"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.Decision
	}{
		{
			name: "Delegate With Agent",
			text: `{"command": "delegate", "agent": "coder", "task": "write tests"}`,
			want: domain.Delegate("coder", "write tests"),
		},
		{
			name: "Delegate With Worker Alias",
			text: `{"command": "delegate", "worker": "coder", "task": "fix bug"}`,
			want: domain.Delegate("coder", "fix bug"),
		},
		{
			name: "Final",
			text: `{"command": "final", "answer": "done"}`,
			want: domain.Final("done"),
		},
		{
			name: "Bare Answer",
			text: `{"answer": {"summary": "ok"}}`,
			want: domain.Final(map[string]any{"summary": "ok"}),
		},
		{
			name: "Fenced",
			text: "```json\n{\"command\": \"final\", \"answer\": \"fenced\"}\n```",
			want: domain.Final("fenced"),
		},
		{
			name: "Case Insensitive Command",
			text: `{"command": "DELEGATE", "agent": "a", "task": "t"}`,
			want: domain.Delegate("a", "t"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decision.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "Empty", text: "  "},
		{name: "Prose", text: "I think the coder should go next."},
		{name: "Prose Around JSON", text: `Sure! {"command": "final", "answer": "x"}`},
		{name: "Array", text: `[{"command": "final"}]`},
		{name: "Null", text: `null`},
		{name: "Unknown Command", text: `{"command": "sleep"}`},
		{name: "Missing Command", text: `{"agent": "a", "task": "t"}`},
		{name: "Unknown Field", text: `{"command": "delegate", "agent": "a", "task": "t", "priority": 1}`},
		{name: "Delegate Without Agent", text: `{"command": "delegate", "task": "t"}`},
		{name: "Delegate Without Task", text: `{"command": "delegate", "agent": "a"}`},
		{name: "Delegate With Non-String Task", text: `{"command": "delegate", "agent": "a", "task": 42}`},
		{name: "Delegate With Answer", text: `{"command": "delegate", "agent": "a", "task": "t", "answer": "x"}`},
		{name: "Conflicting Names", text: `{"command": "delegate", "agent": "a", "worker": "b", "task": "t"}`},
		{name: "Final Without Answer", text: `{"command": "final"}`},
		{name: "Final With Null Answer", text: `{"command": "final", "answer": null}`},
		{name: "Final Naming Worker", text: `{"command": "final", "agent": "a", "answer": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decision.Parse(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrDecisionParse)

			var parseErr *domain.DecisionParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.text, parseErr.Text)
		})
	}
}

func TestCorrective(t *testing.T) {
	_, err := decision.Parse("nope")
	require.Error(t, err)

	msg := decision.Corrective(err)
	assert.Contains(t, msg, "could not be used")
	assert.Contains(t, msg, decision.Schema)
}
