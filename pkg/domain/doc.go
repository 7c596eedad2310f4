/*
Package domain contains the core models shared by both driving loops of Conductor.

It is kept free of I/O and persistence, following the Hexagonal Architecture used across the module.

# Key Entities

  - Context: the ordered, mutable key/value store threaded through a Run.
  - Run: one execution instance with its status, step counter, transcript and trace.
  - Decision: the delegation controller's per-round choice (Delegate or Final).
  - LifecycleHooks: observability callbacks emitted by the engines.
  - Errors: sentinel and typed errors for configuration, bound and transient failures.
*/
package domain
