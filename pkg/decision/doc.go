/*
Package decision parses the structured text returned by a decision maker into a domain.Decision.

Two shapes are accepted:

	{"command": "delegate", "agent": "<worker>", "task": "<task>"}
	{"command": "final", "answer": <any>}

A bare {"answer": ...} object is read as a final decision. The object may be wrapped in a single
markdown code fence. Unknown fields, missing fields and surrounding prose are rejected.
*/
package decision
