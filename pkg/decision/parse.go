package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Commands accepted in the "command" field.
const (
	CommandDelegate = "delegate"
	CommandFinal    = "final"
)

// Schema documents the accepted decision shapes. Decision makers should embed it in their prompts.
const Schema = `Respond with a single JSON object and nothing else.
To delegate: {"command": "delegate", "agent": "<worker name>", "task": "<task description>"}
To finish:   {"command": "final", "answer": <final answer>}`

// payload mirrors the wire shape. "agent" and "worker" are synonyms.
type payload struct {
	Command string `mapstructure:"command"`
	Agent   string `mapstructure:"agent"`
	Worker  string `mapstructure:"worker"`
	Task    any    `mapstructure:"task"`
	Answer  any    `mapstructure:"answer"`
}

var fence = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*\\n(.*?)\\n?```$")

// Parse converts decision text into a Decision.
// It fails closed: anything that is not exactly one of the documented shapes
// yields a *domain.DecisionParseError.
func Parse(text string) (domain.Decision, error) {
	body := strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if body == "" {
		return domain.Decision{}, fail(text, errors.New("empty response"))
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return domain.Decision{}, fail(text, fmt.Errorf("not a JSON object: %w", err))
	}
	if raw == nil {
		return domain.Decision{}, fail(text, errors.New("not a JSON object"))
	}

	var p payload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &p,
	})
	if err != nil {
		return domain.Decision{}, fail(text, err)
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Decision{}, fail(text, err)
	}

	_, hasAnswer := raw["answer"]
	command := strings.ToLower(strings.TrimSpace(p.Command))
	if command == "" && hasAnswer {
		command = CommandFinal
	}

	switch command {
	case CommandDelegate:
		return delegate(text, p, hasAnswer)
	case CommandFinal:
		if p.Agent != "" || p.Worker != "" || p.Task != nil {
			return domain.Decision{}, fail(text, errors.New("final decision must not name a worker or task"))
		}
		if !hasAnswer || p.Answer == nil {
			return domain.Decision{}, fail(text, errors.New("final decision requires an answer"))
		}
		return domain.Final(p.Answer), nil
	case "":
		return domain.Decision{}, fail(text, errors.New("missing command"))
	default:
		return domain.Decision{}, fail(text, fmt.Errorf("unknown command %q", p.Command))
	}
}

func delegate(text string, p payload, hasAnswer bool) (domain.Decision, error) {
	if hasAnswer {
		return domain.Decision{}, fail(text, errors.New("delegate decision must not carry an answer"))
	}
	worker := strings.TrimSpace(p.Agent)
	if w := strings.TrimSpace(p.Worker); w != "" {
		if worker != "" && worker != w {
			return domain.Decision{}, fail(text, fmt.Errorf("conflicting worker names %q and %q", worker, w))
		}
		worker = w
	}
	if worker == "" {
		return domain.Decision{}, fail(text, errors.New("delegate decision requires an agent"))
	}
	task, ok := p.Task.(string)
	if !ok || strings.TrimSpace(task) == "" {
		return domain.Decision{}, fail(text, errors.New("delegate decision requires a task string"))
	}
	return domain.Delegate(worker, task), nil
}

func fail(text string, cause error) error {
	return &domain.DecisionParseError{Text: text, Cause: cause}
}

// Corrective builds the instruction sent with the retry after a parse failure.
func Corrective(err error) string {
	return fmt.Sprintf("Your previous response could not be used (%v).\n%s", err, Schema)
}
