package framework

import "errors"

// Engine error taxonomy. Tool execution errors are recovered locally by the
// orchestrator (fed back as an observation for one re-planning attempt);
// these sentinels mark the failures that terminate a turn or a path.
var (
	// ErrStepBudgetExceeded fires when the loop safety valve trips; surfaced
	// to the user as a request for more specific instructions.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrLoggingFailed aborts irreversible-action paths only: an audit trail
	// is a precondition for publishing.
	ErrLoggingFailed = errors.New("decision logging failed")

	// ErrTurnInFlight means another turn for the same conversation is still
	// running; turns are serialized per conversation id.
	ErrTurnInFlight = errors.New("turn already in flight for conversation")

	// ErrUnknownTool means the backend proposed a call absent from the
	// registry.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateEntry marks an append whose key already exists in the log.
	ErrDuplicateEntry = errors.New("duplicate activity entry")

	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("not found")
)
