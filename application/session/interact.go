package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"webpilot-go/core/state"
	"webpilot-go/infrastructure/browser"
)

// ElementHandle is a resolved element bound to the navigation epoch it was
// found in. After the page navigates again the handle is stale and every
// operation on it fails with ErrStaleHandle.
type ElementHandle struct {
	page    *Page
	ref     browser.ElementRef
	epoch   uint64
	focused bool
}

// Selector returns the query that resolved this handle.
func (h *ElementHandle) Selector() string {
	return h.ref.Selector
}

// IsFocused reports whether the element was focused through this handle.
func (h *ElementHandle) IsFocused() bool {
	return h.focused
}

// FindElement resolves a CSS selector to an element handle, retrying
// missing elements a configured number of times before giving up with
// browser.ErrElementNotFound. Other faults fail immediately.
func (p *Page) FindElement(ctx context.Context, selector string) (*ElementHandle, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.requireReady(); err != nil {
		return nil, err
	}

	attempts := p.session.config.FindAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := p.session.config.FindInterval

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		ref, err := p.driver.QuerySelector(ctx, p.id, selector)
		if err == nil {
			return &ElementHandle{page: p, ref: ref, epoch: p.Epoch()}, nil
		}
		if !errors.Is(err, browser.ErrElementNotFound) {
			p.failOp("find", err)
			return nil, err
		}
		lastErr = err
	}

	p.failOp("find", lastErr)
	return nil, lastErr
}

// checkHandle validates a handle against the page's current state and
// epoch. Callers hold opMu.
func (p *Page) checkHandle(h *ElementHandle) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	if h.epoch != p.Epoch() {
		return fmt.Errorf("%w: %q resolved at epoch %d, page is at %d",
			ErrStaleHandle, h.ref.Selector, h.epoch, p.Epoch())
	}
	return nil
}

// Click clicks the element. A successful click moves focus to the
// element, so typing through this handle is allowed afterwards.
func (p *Page) Click(ctx context.Context, h *ElementHandle) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkHandle(h); err != nil {
		return err
	}
	if err := p.driver.Click(ctx, p.id, h.ref); err != nil {
		p.failOp("click", err)
		return err
	}
	h.focused = true
	return nil
}

// Focus focuses the element and pauses briefly so the browser settles
// before any input is dispatched.
func (p *Page) Focus(ctx context.Context, h *ElementHandle) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkHandle(h); err != nil {
		return err
	}
	if err := p.driver.Focus(ctx, p.id, h.ref); err != nil {
		p.failOp("focus", err)
		return err
	}
	h.focused = true

	if settle := p.session.config.FocusSettle; settle > 0 {
		timer := time.NewTimer(settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Type inserts text into the element. The element must have been focused
// through this handle first; typing into an unfocused element drops
// keystrokes silently, so it is rejected instead.
func (p *Page) Type(ctx context.Context, h *ElementHandle, text string) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkHandle(h); err != nil {
		return err
	}
	if !h.focused {
		return &FocusRequiredError{Selector: h.ref.Selector}
	}
	if err := p.driver.TypeText(ctx, p.id, h.ref, text); err != nil {
		p.failOp("type", err)
		return err
	}
	return nil
}

// Submit submits the form the element belongs to. Backends with native
// key dispatch press Enter on the focused element; others fall back to
// calling form.submit() from script. Either way a navigation is
// triggered, so readiness resets and Submit blocks until the new page is
// Ready, exactly like Navigate.
func (p *Page) Submit(ctx context.Context, h *ElementHandle) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkHandle(h); err != nil {
		return err
	}
	if !h.focused {
		return &FocusRequiredError{Selector: h.ref.Selector}
	}

	url := p.URL()

	// Arm before dispatching so the resulting navigation cannot complete
	// unobserved.
	ready := p.armReady()
	if err := p.transition(state.StateNavigating); err != nil {
		return err
	}

	var err error
	if p.driver.Capabilities().NativeKeyDispatch {
		err = p.driver.DispatchEnter(ctx, p.id)
	} else {
		script := fmt.Sprintf(
			`(() => { const el = document.querySelector(%s); if (el && el.form) { el.form.submit(); return true; } return false; })()`,
			strconv.Quote(h.ref.Selector))
		_, err = p.driver.Evaluate(ctx, p.id, script)
	}
	if err != nil {
		p.failOp("submit", err)
		return err
	}

	if err := p.waitReady(ctx, ready, url); err != nil {
		p.failOp("submit", err)
		return err
	}
	return p.transition(state.StateReady)
}
