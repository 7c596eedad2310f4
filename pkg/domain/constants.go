package domain

// END is the reserved terminal state name. It owns no steps and no transition.
const END = "__end__"

// Reserved Context keys.
const (
	// KeyUpdateInstruction holds the latest instruction injected through the feedback gate.
	KeyUpdateInstruction = "update_instruction"

	// KeyLastWorker and KeyLastResult are written by the delegation loop after every worker round.
	KeyLastWorker = "last_worker"
	KeyLastResult = "last_result"
)

// ExitMarker is the feedback text that ends a loop from the gate.
const ExitMarker = "EXIT"
