package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"webpilot-go/core/state"
)

var (
	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrPageClosed indicates an operation on a closed page.
	ErrPageClosed = errors.New("page is closed")

	// ErrStaleHandle indicates an element handle from a superseded
	// document. The caller must re-find the element.
	ErrStaleHandle = errors.New("element handle is stale")
)

// PageCreationError indicates a new page target could not be created.
type PageCreationError struct {
	URL string
	Err error
}

func (e *PageCreationError) Error() string {
	return fmt.Sprintf("failed to create page for %s: %v", e.URL, e.Err)
}

func (e *PageCreationError) Unwrap() error {
	return e.Err
}

// NavigationTimeoutError indicates the ready signal did not arrive within
// the configured bound. The page remains in the Navigating state.
type NavigationTimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("navigation to %s did not complete within %v", e.URL, e.Timeout)
}

// NotReadyError indicates a foreground operation was attempted while the
// page was not in the Ready state.
type NotReadyError struct {
	State state.PageState
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("page is not ready (state: %s)", e.State)
}

// FocusRequiredError indicates text input was attempted on an element that
// was never focused through its handle.
type FocusRequiredError struct {
	Selector string
}

func (e *FocusRequiredError) Error() string {
	return fmt.Sprintf("element %q must be focused before typing", e.Selector)
}

// DecodeError indicates a script produced a value but it could not be
// decoded into the requested shape. Distinct from *browser.ScriptError,
// which means the script itself threw.
type DecodeError struct {
	Raw json.RawMessage
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode script result: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CaptureError indicates a screenshot capture failed. Captures are not
// retried; the page may have changed between attempts.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("screenshot capture failed: %v", e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
