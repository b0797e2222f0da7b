package session

import (
	"context"
	"log/slog"
	"sync"

	"webpilot-go/core/event"
	"webpilot-go/core/state"
	"webpilot-go/infrastructure/browser"
)

// Page is one browser tab tracked through the Created -> Navigating ->
// Ready -> Closed lifecycle. Foreground operations are serialized through
// opMu, so concurrent callers observe a total order per page.
type Page struct {
	id      string
	session *Session
	driver  browser.Driver
	logger  *slog.Logger

	// opMu serializes foreground operations (navigation, interaction,
	// extraction, capture).
	opMu sync.Mutex

	stateMu sync.RWMutex
	state   state.PageState
	url     string

	// epoch counts navigations. Element handles snapshot it when
	// resolved; a mismatch marks the handle stale.
	epoch uint64

	// readyCh is armed per navigation and closed when the ready signal
	// arrives from the event stream.
	readyMu sync.Mutex
	readyCh chan struct{}
}

func newPage(id string, s *Session) *Page {
	return &Page{
		id:      id,
		session: s,
		driver:  s.driver,
		logger:  s.logger.With("page_id", id),
		state:   state.StateCreated,
	}
}

// ID returns the page's target ID.
func (p *Page) ID() string {
	return p.id
}

// URL returns the last committed main-frame URL.
func (p *Page) URL() string {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.url
}

// State returns the current lifecycle state.
func (p *Page) State() state.PageState {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// Epoch returns the current navigation epoch.
func (p *Page) Epoch() uint64 {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.epoch
}

// transition moves the page to a new state, publishing the change.
// Returns *state.TransitionError when the move is not allowed.
func (p *Page) transition(to state.PageState) error {
	p.stateMu.Lock()
	from := p.state
	if from == to {
		p.stateMu.Unlock()
		return nil
	}
	if !from.CanTransitionTo(to) {
		p.stateMu.Unlock()
		return &state.TransitionError{From: from, To: to}
	}
	p.state = to
	p.stateMu.Unlock()

	p.session.eventBus.Publish(event.NewPageStateChanged(p.session.id, p.id, from, to))
	p.logger.Debug("Page state changed", "from", from.String(), "to", to.String())
	return nil
}

// requireReady gates foreground operations on the Ready state. Callers
// hold opMu.
func (p *Page) requireReady() error {
	s := p.State()
	if s == state.StateClosed {
		return ErrPageClosed
	}
	if !s.CanInteract() {
		return &NotReadyError{State: s}
	}
	return nil
}

// armReady bumps the epoch and installs a fresh latch for the next ready
// signal. Handles resolved before this point become stale.
func (p *Page) armReady() chan struct{} {
	p.stateMu.Lock()
	p.epoch++
	p.stateMu.Unlock()

	ch := make(chan struct{})
	p.readyMu.Lock()
	p.readyCh = ch
	p.readyMu.Unlock()
	return ch
}

// signalReady latches the armed channel, if any. Safe to call repeatedly;
// only the first signal per navigation counts.
func (p *Page) signalReady() {
	p.readyMu.Lock()
	defer p.readyMu.Unlock()
	if p.readyCh != nil {
		close(p.readyCh)
		p.readyCh = nil
	}
}

// handleEvent is called from the session's event consumer for events
// belonging to this page.
func (p *Page) handleEvent(e event.Event) {
	switch ev := e.(type) {
	case *event.NavigationCompleted:
		p.signalReady()
	case *event.FrameNavigated:
		p.stateMu.Lock()
		p.url = ev.URL
		p.stateMu.Unlock()
	case *event.PageCrashed:
		p.logger.Warn("Page crashed")
		_ = p.transition(state.StateClosed)
	}
}

// Close closes the page and unregisters it from the session. Idempotent.
func (p *Page) Close(ctx context.Context) error {
	p.session.unregisterPage(p.id)
	return p.close(ctx)
}

func (p *Page) close(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.State() == state.StateClosed {
		return nil
	}

	// Unblock any waiter before the target goes away.
	p.signalReady()
	_ = p.transition(state.StateClosed)

	err := p.driver.CloseTarget(ctx, p.id)
	p.session.eventBus.Publish(event.NewPageClosed(p.session.id, p.id))
	return err
}

// failOp publishes an operation failure event. The error still returns to
// the caller; the event is for observers.
func (p *Page) failOp(op string, err error) {
	p.session.eventBus.Publish(event.NewOperationFailed(p.session.id, p.id, op, err))
}
