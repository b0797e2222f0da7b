// Package event defines all events that can be published by the engine.
// Events represent browser-originated notifications and engine state changes,
// and are consumed by subscribers on the event bus.
package event

import "webpilot-go/core/state"

// Event is the base interface for all events.
type Event interface {
	// EventName returns the name of the event for logging/debugging
	EventName() string
}

// SessionEvent is an event that originates from a specific session.
type SessionEvent interface {
	Event
	// SessionID returns the source session ID
	SessionID() string
}

// PageEvent is an event scoped to a specific page within a session.
type PageEvent interface {
	SessionEvent
	// PageID returns the source page (target) ID
	PageID() string
}

// baseSessionEvent provides common implementation for session events.
type baseSessionEvent struct {
	sessionID string
}

func (e *baseSessionEvent) SessionID() string {
	return e.sessionID
}

// basePageEvent provides common implementation for page-scoped events.
type basePageEvent struct {
	baseSessionEvent
	pageID string
}

func (e *basePageEvent) PageID() string {
	return e.pageID
}

// SessionOpened is published when a session's connection is established and
// its event consumer is running.
type SessionOpened struct {
	baseSessionEvent
	Backend string
}

func NewSessionOpened(sessionID, backend string) *SessionOpened {
	return &SessionOpened{
		baseSessionEvent: baseSessionEvent{sessionID: sessionID},
		Backend:          backend,
	}
}

func (e *SessionOpened) EventName() string {
	return "SessionOpened"
}

// SessionClosed is published when a session terminates.
type SessionClosed struct {
	baseSessionEvent
	Error error // nil if closed normally
}

func NewSessionClosed(sessionID string, err error) *SessionClosed {
	return &SessionClosed{
		baseSessionEvent: baseSessionEvent{sessionID: sessionID},
		Error:            err,
	}
}

func (e *SessionClosed) EventName() string {
	return "SessionClosed"
}

// PageCreated is published when a new page (target) is created.
type PageCreated struct {
	basePageEvent
	URL string
}

func NewPageCreated(sessionID, pageID, url string) *PageCreated {
	return &PageCreated{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		URL:           url,
	}
}

func (e *PageCreated) EventName() string {
	return "PageCreated"
}

// PageClosed is published when a page is released.
type PageClosed struct {
	basePageEvent
}

func NewPageClosed(sessionID, pageID string) *PageClosed {
	return &PageClosed{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
	}
}

func (e *PageClosed) EventName() string {
	return "PageClosed"
}

// PageStateChanged is published when a page's lifecycle state changes.
type PageStateChanged struct {
	basePageEvent
	OldState state.PageState
	NewState state.PageState
}

func NewPageStateChanged(sessionID, pageID string, oldState, newState state.PageState) *PageStateChanged {
	return &PageStateChanged{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		OldState:      oldState,
		NewState:      newState,
	}
}

func (e *PageStateChanged) EventName() string {
	return "PageStateChanged"
}

// OperationFailed is published when a foreground operation fails.
type OperationFailed struct {
	basePageEvent
	Operation string
	Error     error
}

func NewOperationFailed(sessionID, pageID, operation string, err error) *OperationFailed {
	return &OperationFailed{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		Operation:     operation,
		Error:         err,
	}
}

func (e *OperationFailed) EventName() string {
	return "OperationFailed"
}

// ArtifactCaptured is published when a page snapshot is captured.
type ArtifactCaptured struct {
	basePageEvent
	Format string
	Size   int
}

func NewArtifactCaptured(sessionID, pageID, format string, size int) *ArtifactCaptured {
	return &ArtifactCaptured{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		Format:        format,
		Size:          size,
	}
}

func (e *ArtifactCaptured) EventName() string {
	return "ArtifactCaptured"
}
