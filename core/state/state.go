// Package state defines the page state machine.
package state

import "fmt"

// PageState represents the lifecycle state of a page.
type PageState int

const (
	// StateCreated is the initial state before the first navigation is issued.
	StateCreated PageState = iota
	// StateNavigating indicates a navigation is in flight and the document
	// is not yet safe to query or interact with.
	StateNavigating
	// StateReady indicates the page reached readiness after its most recent
	// navigation and accepts interaction, extraction, and capture.
	StateReady
	// StateClosed indicates the page has been released. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s PageState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateNavigating:
		return "Navigating"
	case StateReady:
		return "Ready"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// validTransitions defines the allowed state transitions.
// Key is the current state, value is a list of valid target states.
// A page re-enters Navigating on every new navigation, which is how
// readiness is reset.
var validTransitions = map[PageState][]PageState{
	StateCreated:    {StateNavigating, StateClosed},
	StateNavigating: {StateReady, StateClosed},
	StateReady:      {StateNavigating, StateClosed},
	StateClosed:     {}, // Terminal state, no transitions allowed
}

// CanTransitionTo checks if transitioning from the current state to the target state is valid.
func (s PageState) CanTransitionTo(target PageState) bool {
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// ValidTransitions returns the list of valid target states from the current state.
func (s PageState) ValidTransitions() []PageState {
	return validTransitions[s]
}

// IsTerminal returns true if the state is a terminal state (no further transitions).
func (s PageState) IsTerminal() bool {
	return s == StateClosed
}

// CanInteract returns true if the page accepts interaction, extraction,
// and capture operations. Only a Ready page does.
func (s PageState) CanInteract() bool {
	return s == StateReady
}

// CanNavigate returns true if a navigation may be issued in this state.
func (s PageState) CanNavigate() bool {
	return s != StateClosed
}

// TransitionError represents an invalid state transition attempt.
type TransitionError struct {
	From   PageState
	To     PageState
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid state transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(from, to PageState, reason string) *TransitionError {
	return &TransitionError{From: from, To: to, Reason: reason}
}
