package conductor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/dsl"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
)

// ExampleNew demonstrates an iterative review loop bounded by a Context counter.
func ExampleNew() {
	draft := func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		n, _ := c.Value("revision").(int)
		return domain.Update{"revision": n + 1}, nil
	}
	route := func(c *domain.Context) string {
		if c.Value("revision").(int) < c.Value("max_revisions").(int) {
			return "write"
		}
		return "publish"
	}

	g := dsl.New("review").
		Add("write").Func("draft", draft).Branch(route, "write", "publish").
		Add("publish").Func("publish", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		return domain.Update{"published": true}, nil
	}).End().
		MustBuild()

	eng, err := conductor.New(g)
	if err != nil {
		log.Fatal(err)
	}

	run, err := eng.Run(context.Background(), map[string]any{"max_revisions": 2})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(run.Status, run.History, run.Context.Value("published"))
	// Output: succeeded [write write publish] true
}

// ExampleNewDelegator demonstrates the adaptive loop with a scripted decision maker.
func ExampleNewDelegator() {
	reg := registry.NewRegistry()
	_ = reg.RegisterFunc("researcher", "finds facts", func(ctx context.Context, task string, c *domain.Context) (any, error) {
		return "otters hold hands", nil
	})

	decisions := []string{
		`{"command": "delegate", "agent": "researcher", "task": "find a fact about otters"}`,
		`{"command": "final", "answer": "Otters hold hands while sleeping."}`,
	}
	decider := ports.DecisionMakerFunc(func(ctx context.Context, req domain.DecisionRequest) (string, error) {
		return decisions[len(req.Transcript)], nil
	})

	d, err := conductor.NewDelegator(reg, decider)
	if err != nil {
		log.Fatal(err)
	}

	run, err := d.Run(context.Background(), "tell me about otters", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(run.Status, len(run.Transcript), run.Answer)
	// Output: succeeded 1 Otters hold hands while sleeping.
}
