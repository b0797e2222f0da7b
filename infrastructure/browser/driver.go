// Package browser provides browser automation infrastructure.
package browser

import (
	"context"
	"encoding/json"
	"time"

	"webpilot-go/core/event"
)

// Driver defines the interface to a remote browser's command/event protocol.
// This abstraction allows for different backends (ChromeDP, Rod, etc.)
// Drivers issue commands, classify protocol faults into the errors defined
// in this package, and tag forwarded events with session and target IDs.
type Driver interface {
	// Start establishes the browser connection. Events forwarded from the
	// protocol's event stream are tagged with the given session ID.
	Start(ctx context.Context, sessionID string) error

	// Stop closes the browser and releases resources. The event stream is
	// closed; Stop is idempotent.
	Stop() error

	// IsRunning returns true if the browser connection is active.
	IsRunning() bool

	// Name returns the backend name.
	Name() string

	// Capabilities reports what the backend supports natively.
	Capabilities() Capabilities

	// EventStream returns the channel the driver forwards protocol events
	// on. It is closed when the driver stops. Exactly one consumer is
	// expected to drain it.
	EventStream() <-chan event.Event

	// CreateTarget creates a new page target and issues the initial
	// navigation to url. Returns the target ID.
	CreateTarget(ctx context.Context, url string) (string, error)

	// CloseTarget closes a page target.
	CloseTarget(ctx context.Context, targetID string) error

	// Navigate issues a navigation command for the target. It does not
	// wait for the load to complete; completion is signaled on the event
	// stream.
	Navigate(ctx context.Context, targetID, url string) error

	// QuerySelector resolves a CSS selector to an element reference.
	// Returns ErrElementNotFound when nothing matches.
	QuerySelector(ctx context.Context, targetID, selector string) (ElementRef, error)

	// Focus focuses the referenced element.
	Focus(ctx context.Context, targetID string, ref ElementRef) error

	// Click clicks the referenced element.
	Click(ctx context.Context, targetID string, ref ElementRef) error

	// TypeText inserts text into the referenced element. The element must
	// already hold focus; the driver does not focus implicitly.
	TypeText(ctx context.Context, targetID string, ref ElementRef, text string) error

	// DispatchEnter dispatches a native Enter key press to the focused
	// element. Drivers without native key dispatch return ErrNotSupported.
	DispatchEnter(ctx context.Context, targetID string) error

	// Evaluate runs a script in the target's document and returns the raw
	// JSON result. Script throws surface as *ScriptError.
	Evaluate(ctx context.Context, targetID, script string) (json.RawMessage, error)

	// CaptureScreenshot captures a rendering of the target.
	CaptureScreenshot(ctx context.Context, targetID string, opts CaptureOptions) ([]byte, error)
}

// ElementRef is an opaque reference to a DOM node resolved at a point in
// time. It may go stale if the DOM mutates; operations against a stale
// reference fail with ErrStaleElement.
type ElementRef struct {
	// ID is the backend-specific node identity.
	ID string

	// Selector is the query that resolved this reference, kept for
	// diagnostics.
	Selector string
}

// Capabilities reports optional backend features.
type Capabilities struct {
	// NativeKeyDispatch is true when the backend can dispatch raw key
	// events (e.g. Enter to submit a form). Without it, callers fall back
	// to script-based form submission.
	NativeKeyDispatch bool
}

// CaptureOptions controls screenshot capture.
type CaptureOptions struct {
	// Format is "png" or "jpeg".
	Format string

	// Quality is the JPEG quality 0-100. Ignored for png.
	Quality int

	// FullPage captures beyond the viewport.
	FullPage bool
}

// DefaultCaptureOptions returns PNG viewport capture.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{Format: "png", Quality: 90}
}

// DriverConfig holds configuration for browser drivers.
type DriverConfig struct {
	// Headless runs the browser without a visible window.
	Headless bool

	// WindowWidth is the browser window width.
	WindowWidth int

	// WindowHeight is the browser window height.
	WindowHeight int

	// HideAutomation disables the blink AutomationControlled feature so
	// pages cannot trivially detect the automated browser.
	HideAutomation bool

	// Stealth applies the stealth evasion script to new pages (rod
	// backend only).
	Stealth bool

	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string

	// UserDataDir specifies a custom user data directory.
	UserDataDir string

	// NoSandbox disables the browser sandbox.
	NoSandbox bool

	// DisableGPU disables GPU acceleration.
	DisableGPU bool

	// ActionTimeout bounds each protocol command.
	ActionTimeout time.Duration

	// EventBuffer is the size of the forwarded event channel.
	EventBuffer int
}

// DefaultDriverConfig returns default browser configuration.
func DefaultDriverConfig() *DriverConfig {
	return &DriverConfig{
		Headless:       true,
		WindowWidth:    1280,
		WindowHeight:   800,
		HideAutomation: true,
		ActionTimeout:  30 * time.Second,
		EventBuffer:    256,
	}
}
