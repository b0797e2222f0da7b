package browser

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for protocol faults. Drivers classify raw backend errors
// into these so callers can branch without string matching.
var (
	// ErrNotRunning indicates a command was issued before Start or after
	// Stop.
	ErrNotRunning = errors.New("browser is not running")

	// ErrElementNotFound indicates a selector matched nothing.
	ErrElementNotFound = errors.New("element not found")

	// ErrStaleElement indicates an element reference no longer resolves,
	// usually because the DOM mutated or the document was replaced.
	ErrStaleElement = errors.New("stale element reference")

	// ErrTargetClosed indicates the page target is gone.
	ErrTargetClosed = errors.New("target closed")

	// ErrNotSupported indicates the backend lacks the capability.
	ErrNotSupported = errors.New("operation not supported by driver")
)

// ConnectionError indicates the browser could not be reached or the
// connection was lost mid-session.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("browser connection failed (%s): %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError wraps a backend fault that matches no specific sentinel,
// including command timeouts. It exists so raw transport errors never
// cross the package boundary untyped.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol fault: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ScriptError indicates an evaluated script threw before producing a value.
type ScriptError struct {
	Detail string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("script evaluation failed: %s", e.Detail)
	}
	return fmt.Sprintf("script evaluation failed: %v", e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// classifyError maps a raw protocol error onto the package sentinels.
// Backends report node and target faults as free-form messages, so
// matching on text is the only option here. Anything unrecognized is
// wrapped in ProtocolError rather than surfaced raw.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not find node"),
		strings.Contains(msg, "no node with given id"),
		strings.Contains(msg, "node with given id does not belong"),
		strings.Contains(msg, "cannot find context with specified id"),
		strings.Contains(msg, "object couldn't be returned by value"),
		strings.Contains(msg, "cannot find object"):
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	case strings.Contains(msg, "no target with given id"),
		strings.Contains(msg, "target closed"),
		strings.Contains(msg, "session closed"),
		strings.Contains(msg, "target crashed"),
		strings.Contains(msg, "websocket url timeout"),
		strings.Contains(msg, "context canceled") && strings.Contains(msg, "target"):
		return fmt.Errorf("%w: %v", ErrTargetClosed, err)
	}
	return &ProtocolError{Err: err}
}
