package session

import (
	"context"
	"time"

	"webpilot-go/core/event"
	"webpilot-go/core/state"
)

// Navigate drives the page to url and blocks until it is Ready: the
// navigation command is issued, the ready signal is awaited with a bound,
// and a short settle delay runs before the state flips to Ready.
//
// On timeout the page stays in Navigating and the caller may retry or
// close it; it never silently returns to Ready.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	cur := p.State()
	if cur == state.StateClosed {
		return ErrPageClosed
	}
	if !cur.CanNavigate() {
		return &NotReadyError{State: cur}
	}

	// Arm the latch before issuing the command so a fast ready signal
	// cannot slip past the wait.
	ready := p.armReady()

	if cur != state.StateNavigating {
		if err := p.transition(state.StateNavigating); err != nil {
			return err
		}
	}

	p.session.eventBus.Publish(event.NewNavigationStarted(p.session.id, p.id, url))

	if err := p.driver.Navigate(ctx, p.id, url); err != nil {
		p.failOp("navigate", err)
		return err
	}

	if err := p.waitReady(ctx, ready, url); err != nil {
		p.failOp("navigate", err)
		return err
	}

	p.stateMu.Lock()
	p.url = url
	p.stateMu.Unlock()

	if err := p.transition(state.StateReady); err != nil {
		return err
	}
	p.logger.Info("Navigation complete", "url", url)
	return nil
}

// waitReady blocks until the ready latch closes, then runs the settle
// delay. Both waits respect the caller's context.
func (p *Page) waitReady(ctx context.Context, ready <-chan struct{}, url string) error {
	timeout := p.session.config.NavigationTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		return &NavigationTimeoutError{URL: url, Timeout: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}

	settle := p.session.config.SettleDelay
	if settle > maxSettleDelay {
		settle = maxSettleDelay
	}
	if settle <= 0 {
		return nil
	}

	settleTimer := time.NewTimer(settle)
	defer settleTimer.Stop()
	select {
	case <-settleTimer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
