/*
Package session serialises access to persisted runs.

A parked run may be resumed from several places at once (an HTTP request, an MCP call, a CLI).
The Manager takes a per-run in-process lock, and optionally a distributed lock, around every
load-modify-save cycle so that resumes never interleave.
*/
package session
