/*
Package conductor coordinates autonomous workers toward a shared goal by threading a mutable,
ordered Context through a sequence of steps.

Two driving loops are provided:

  - Engine follows a fixed graph of named states. Each state runs its steps in order, merges
    their partial updates into the Context and resolves a static or conditional transition
    until the reserved END state is reached.
  - Delegator asks a DecisionMaker, each round, which registered worker should act next or
    whether the goal is met, under a mandatory round bound.

Both loops may consult a FeedbackSource between rounds (the interrupt gate) to inject an
instruction under the "update_instruction" Context key, stop with EXIT, or park the run until
it is resumed.

# Usage

	g := dsl.New("review").
		Add("write").Do(writer).Branch(route, "write", "publish").
		Add("publish").Do(publisher).End().
		MustBuild()

	eng, err := conductor.New(g, conductor.WithMaxIterations(50))
	if err != nil {
		log.Fatal(err)
	}

	run, err := eng.Run(ctx, map[string]any{"topic": "otters", "max_revisions": 2})
	if err != nil {
		log.Printf("run %s ended %s: %v", run.ID, run.Status, err)
	}

Every outcome returns the Run, including failed and cancelled ones, so the Context, transcript
and trace accumulated so far are never lost.

# Observability

Lifecycle hooks (domain.LifecycleHooks) report state, step, transition, decision, worker and
feedback events. The observability package turns them into structured logs and Prometheus metrics.
*/
package conductor
