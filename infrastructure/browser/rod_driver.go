package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"webpilot-go/core/event"
)

// rodTarget tracks one rod page and the refs resolved against it.
type rodTarget struct {
	page *rod.Page

	mu      sync.Mutex
	lastURL string
	refs    map[string]*rod.Element
}

func (t *rodTarget) setURL(url string) {
	t.mu.Lock()
	t.lastURL = url
	t.mu.Unlock()
}

func (t *rodTarget) url() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastURL
}

func (t *rodTarget) putRef(id string, el *rod.Element) {
	t.mu.Lock()
	t.refs[id] = el
	t.mu.Unlock()
}

func (t *rodTarget) getRef(id string) (*rod.Element, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.refs[id]
	return el, ok
}

// clearRefs drops resolved elements, called when the document is replaced.
func (t *rodTarget) clearRefs() {
	t.mu.Lock()
	t.refs = make(map[string]*rod.Element)
	t.mu.Unlock()
}

// RodDriver implements Driver using go-rod. With Stealth enabled, new
// pages are created through the stealth evasion script.
type RodDriver struct {
	config   *DriverConfig
	launcher *launcher.Launcher
	browser  *rod.Browser

	mu        sync.Mutex
	running   bool
	sessionID string
	targets   map[string]*rodTarget
	nextRef   atomic.Uint64

	events     chan event.Event
	emitMu     sync.RWMutex
	emitClosed bool
}

// NewRodDriver creates a new rod-based browser driver.
func NewRodDriver(config *DriverConfig) *RodDriver {
	if config == nil {
		config = DefaultDriverConfig()
	}
	return &RodDriver{
		config:  config,
		targets: make(map[string]*rodTarget),
		events:  make(chan event.Event, config.EventBuffer),
	}
}

// Name returns the backend name.
func (d *RodDriver) Name() string {
	return "rod"
}

// Capabilities reports backend support.
func (d *RodDriver) Capabilities() Capabilities {
	return Capabilities{NativeKeyDispatch: true}
}

// EventStream returns the forwarded protocol event channel.
func (d *RodDriver) EventStream() <-chan event.Event {
	return d.events
}

// Start launches the browser process and connects to it.
func (d *RodDriver) Start(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("browser already running")
	}

	l := launcher.New().
		Headless(d.config.Headless).
		Leakless(true)
	l = l.Set("window-size", fmt.Sprintf("%d,%d", d.config.WindowWidth, d.config.WindowHeight))
	if d.config.HideAutomation {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}
	if d.config.DisableGPU {
		l = l.Set("disable-gpu")
	}
	if d.config.NoSandbox {
		l = l.NoSandbox(true)
	}
	if d.config.UserAgent != "" {
		l = l.Set("user-agent", d.config.UserAgent)
	}
	if d.config.UserDataDir != "" {
		l = l.UserDataDir(d.config.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return &ConnectionError{Backend: d.Name(), Err: err}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return &ConnectionError{Backend: d.Name(), Err: err}
	}

	d.launcher = l
	d.browser = browser
	d.sessionID = sessionID
	d.running = true
	return nil
}

// Stop closes the browser and the event stream.
func (d *RodDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	for id, t := range d.targets {
		_ = t.page.Close()
		delete(d.targets, id)
	}
	if d.browser != nil {
		_ = d.browser.Close()
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
		d.launcher = nil
	}
	d.running = false

	d.emitMu.Lock()
	d.emitClosed = true
	close(d.events)
	d.emitMu.Unlock()

	return nil
}

// IsRunning returns true if the browser is active.
func (d *RodDriver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *RodDriver) emit(e event.Event) {
	d.emitMu.RLock()
	defer d.emitMu.RUnlock()
	if d.emitClosed {
		return
	}
	select {
	case d.events <- e:
	default:
	}
}

// CreateTarget creates a new page. With Stealth enabled the page starts
// blank with evasions applied, then navigates; otherwise the target is
// created directly at the URL.
func (d *RodDriver) CreateTarget(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	browser := d.browser
	running := d.running
	d.mu.Unlock()

	if !running || browser == nil {
		return "", ErrNotRunning
	}
	if url == "" {
		url = "about:blank"
	}

	var page *rod.Page
	var err error
	if d.config.Stealth {
		page, err = stealth.Page(browser)
		if err == nil && url != "about:blank" {
			err = page.Navigate(url)
		}
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: url})
	}
	if err != nil {
		return "", classifyError(err)
	}

	id := string(page.TargetID)
	t := &rodTarget{
		page:    page,
		lastURL: url,
		refs:    make(map[string]*rod.Element),
	}

	d.mu.Lock()
	d.targets[id] = t
	d.mu.Unlock()

	d.listenTarget(id, t)
	return id, nil
}

// listenTarget forwards protocol events for one page onto the event
// stream. The wait func blocks until the page closes, so it runs on its
// own goroutine.
func (d *RodDriver) listenTarget(id string, t *rodTarget) {
	sessionID := d.sessionID
	wait := t.page.EachEvent(
		func(e *proto.PageFrameNavigated) {
			if e.Frame.ParentID != "" {
				return
			}
			t.setURL(e.Frame.URL)
			d.emit(event.NewFrameNavigated(sessionID, id, e.Frame.URL))
		},
		func(e *proto.PageDomContentEventFired) {
			d.emit(event.NewDOMContentReady(sessionID, id))
		},
		func(e *proto.PageLoadEventFired) {
			d.emit(event.NewNavigationCompleted(sessionID, id, t.url()))
		},
		func(e *proto.InspectorTargetCrashed) {
			d.emit(event.NewPageCrashed(sessionID, id))
		},
		func(e *proto.RuntimeConsoleAPICalled) {
			text := ""
			for _, arg := range e.Args {
				s := arg.Value.JSON("", "")
				if s == "" {
					continue
				}
				if text != "" {
					text += " "
				}
				text += s
			}
			d.emit(event.NewConsoleMessage(sessionID, id, string(e.Type), text))
		},
	)
	go wait()
}

// CloseTarget closes a page target.
func (d *RodDriver) CloseTarget(ctx context.Context, targetID string) error {
	d.mu.Lock()
	t, ok := d.targets[targetID]
	if ok {
		delete(d.targets, targetID)
	}
	d.mu.Unlock()

	if !ok {
		return ErrTargetClosed
	}
	if err := t.page.Close(); err != nil {
		return classifyError(err)
	}
	return nil
}

func (d *RodDriver) target(targetID string) (*rodTarget, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil, ErrNotRunning
	}
	t, ok := d.targets[targetID]
	if !ok {
		return nil, ErrTargetClosed
	}
	return t, nil
}

// Navigate issues the navigation command. Resolved element refs are
// dropped since the document they belong to is being replaced.
func (d *RodDriver) Navigate(ctx context.Context, targetID, url string) error {
	t, err := d.target(targetID)
	if err != nil {
		return err
	}
	t.clearRefs()
	if err := t.page.Timeout(d.config.ActionTimeout).Navigate(url); err != nil {
		return classifyError(err)
	}
	return nil
}

// QuerySelector resolves a selector with a single non-waiting attempt.
func (d *RodDriver) QuerySelector(ctx context.Context, targetID, selector string) (ElementRef, error) {
	t, err := d.target(targetID)
	if err != nil {
		return ElementRef{}, err
	}

	el, err := t.page.Timeout(d.config.ActionTimeout).Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return ElementRef{}, fmt.Errorf("%w: %q", ErrElementNotFound, selector)
		}
		return ElementRef{}, classifyError(err)
	}

	id := fmt.Sprintf("e%d", d.nextRef.Add(1))
	t.putRef(id, el)
	return ElementRef{ID: id, Selector: selector}, nil
}

func (d *RodDriver) element(targetID string, ref ElementRef) (*rod.Element, error) {
	t, err := d.target(targetID)
	if err != nil {
		return nil, err
	}
	el, ok := t.getRef(ref.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStaleElement, ref.Selector)
	}
	return el.Timeout(d.config.ActionTimeout), nil
}

// Focus focuses the referenced element.
func (d *RodDriver) Focus(ctx context.Context, targetID string, ref ElementRef) error {
	el, err := d.element(targetID, ref)
	if err != nil {
		return err
	}
	return classifyError(el.Focus())
}

// Click scrolls the element into view and clicks it.
func (d *RodDriver) Click(ctx context.Context, targetID string, ref ElementRef) error {
	el, err := d.element(targetID, ref)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return classifyError(err)
	}
	return classifyError(el.Click(proto.InputMouseButtonLeft, 1))
}

// TypeText inserts text into the referenced element.
func (d *RodDriver) TypeText(ctx context.Context, targetID string, ref ElementRef, text string) error {
	el, err := d.element(targetID, ref)
	if err != nil {
		return err
	}
	return classifyError(el.Input(text))
}

// DispatchEnter presses Enter on the page keyboard.
func (d *RodDriver) DispatchEnter(ctx context.Context, targetID string) error {
	t, err := d.target(targetID)
	if err != nil {
		return err
	}
	return classifyError(t.page.Timeout(d.config.ActionTimeout).Keyboard.Press(input.Enter))
}

// Evaluate runs a script and returns its JSON-serialized result.
func (d *RodDriver) Evaluate(ctx context.Context, targetID, script string) (json.RawMessage, error) {
	t, err := d.target(targetID)
	if err != nil {
		return nil, err
	}

	obj, err := t.page.Timeout(d.config.ActionTimeout).Eval(script)
	if err != nil {
		var evalErr *rod.EvalError
		if errors.As(err, &evalErr) {
			detail := evalErr.Text
			if evalErr.Exception != nil && evalErr.Exception.Description != "" {
				detail = evalErr.Exception.Description
			}
			return nil, &ScriptError{Detail: detail}
		}
		return nil, classifyError(err)
	}

	raw := obj.Value.JSON("", "")
	if raw == "" {
		raw = "null"
	}
	return json.RawMessage(raw), nil
}

// CaptureScreenshot captures a rendering of the target page.
func (d *RodDriver) CaptureScreenshot(ctx context.Context, targetID string, opts CaptureOptions) ([]byte, error) {
	t, err := d.target(targetID)
	if err != nil {
		return nil, err
	}

	req := &proto.PageCaptureScreenshot{}
	switch opts.Format {
	case "jpeg":
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		quality := opts.Quality
		req.Quality = &quality
	default:
		req.Format = proto.PageCaptureScreenshotFormatPng
	}

	buf, err := t.page.Timeout(d.config.ActionTimeout).Screenshot(opts.FullPage, req)
	if err != nil {
		return nil, classifyError(err)
	}
	return buf, nil
}

// Ensure RodDriver implements Driver
var _ Driver = (*RodDriver)(nil)
