package event

// Browser-originated events, forwarded from the remote protocol's event
// stream by the driver. They carry the session and page (target) IDs the
// driver tagged them with.

// NavigationStarted is published when the browser begins loading a document.
type NavigationStarted struct {
	basePageEvent
	URL string
}

func NewNavigationStarted(sessionID, pageID, url string) *NavigationStarted {
	return &NavigationStarted{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		URL:           url,
	}
}

func (e *NavigationStarted) EventName() string {
	return "NavigationStarted"
}

// NavigationCompleted is published when the browser fires its load event for
// a page. This is the protocol-level completion signal; application-level
// readiness additionally applies the settle delay.
type NavigationCompleted struct {
	basePageEvent
	URL string
}

func NewNavigationCompleted(sessionID, pageID, url string) *NavigationCompleted {
	return &NavigationCompleted{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		URL:           url,
	}
}

func (e *NavigationCompleted) EventName() string {
	return "NavigationCompleted"
}

// DOMContentReady is published when the document has been parsed, before
// subresources finish loading.
type DOMContentReady struct {
	basePageEvent
}

func NewDOMContentReady(sessionID, pageID string) *DOMContentReady {
	return &DOMContentReady{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
	}
}

func (e *DOMContentReady) EventName() string {
	return "DOMContentReady"
}

// FrameNavigated is published when a frame commits a navigation, including
// same-document navigations.
type FrameNavigated struct {
	basePageEvent
	URL string
}

func NewFrameNavigated(sessionID, pageID, url string) *FrameNavigated {
	return &FrameNavigated{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		URL:           url,
	}
}

func (e *FrameNavigated) EventName() string {
	return "FrameNavigated"
}

// PageCrashed is published when the browser reports a renderer crash for a
// page. The page is unusable afterwards.
type PageCrashed struct {
	basePageEvent
}

func NewPageCrashed(sessionID, pageID string) *PageCrashed {
	return &PageCrashed{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
	}
}

func (e *PageCrashed) EventName() string {
	return "PageCrashed"
}

// ConsoleMessage is published for console API calls observed in the page.
type ConsoleMessage struct {
	basePageEvent
	Level string
	Text  string
}

func NewConsoleMessage(sessionID, pageID, level, text string) *ConsoleMessage {
	return &ConsoleMessage{
		basePageEvent: basePageEvent{baseSessionEvent{sessionID}, pageID},
		Level:         level,
		Text:          text,
	}
}

func (e *ConsoleMessage) EventName() string {
	return "ConsoleMessage"
}
