package persistence

import "errors"

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrDelayNotFound     = errors.New("delay record not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrEntityNotFound    = errors.New("entity not found")

	// ErrNotClaimable is returned by status transitions applied to a
	// record that already left the expected state.
	ErrNotClaimable = errors.New("delay record not in a claimable state")
)
