/*
Package ports defines the driven ports (interfaces) of Conductor.

These interfaces decouple the driving loops from the collaborators they call and from the
storage they checkpoint to.

# Key Interfaces

  - Worker: a named capability invoked with a task and the run Context.
  - DecisionMaker: returns the structured decision text for a delegation round.
  - Summarizer: optional final pass over a delegation transcript.
  - FeedbackSource: the external actor behind the interrupt/resume gate.
  - RunStore: persists Run snapshots.
  - DistributedLocker: coordinates access to a run across replicas.
*/
package ports
