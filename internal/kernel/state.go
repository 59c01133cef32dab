package kernel

import "kernelforge/internal/types"

// State is the kernel lifecycle state machine (spec.md §4.4):
// Created -> Initialized -> (Running <-> Paused) -> ShutDown.
type State string

const (
	Created     State = "created"
	Initialized State = "initialized"
	Running     State = "running"
	Paused      State = "paused"
	ShutDown    State = "shut_down"
)

// isAllowedTransition mirrors the teacher's dag.isAllowedTransition:
// explicit from/to validation, no implicit edges. shutdown and reset
// are handled outside this table since they are valid from any state.
func isAllowedTransition(from, to State) bool {
	switch from {
	case Created:
		return to == Initialized
	case Initialized:
		return to == Running
	case Running:
		return to == Paused
	case Paused:
		return to == Running
	default:
		return false
	}
}

func transition(cur State, from, to State) error {
	if cur != from {
		return types.Wrap(types.ErrInvalidConfig, "invalid transition: expected state %s, got %s", from, cur)
	}
	if !isAllowedTransition(from, to) {
		return types.Wrap(types.ErrInvalidConfig, "disallowed transition: %s -> %s", from, to)
	}
	return nil
}
