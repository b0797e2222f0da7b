package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"webpilot-go/core/event"
)

// cdpTarget tracks a chromedp context attached to one page target.
type cdpTarget struct {
	ctx    context.Context
	cancel context.CancelFunc

	// lastURL is the most recent main-frame committed URL, kept so load
	// events can carry it.
	mu      sync.Mutex
	lastURL string
}

func (t *cdpTarget) setURL(url string) {
	t.mu.Lock()
	t.lastURL = url
	t.mu.Unlock()
}

func (t *cdpTarget) url() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastURL
}

// ChromeDPDriver implements Driver using chromedp with one attached
// context per page target.
type ChromeDPDriver struct {
	config        *DriverConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu        sync.Mutex
	running   bool
	sessionID string
	targets   map[string]*cdpTarget

	events     chan event.Event
	emitMu     sync.RWMutex
	emitClosed bool
}

// NewChromeDPDriver creates a new ChromeDP-based browser driver.
func NewChromeDPDriver(config *DriverConfig) *ChromeDPDriver {
	if config == nil {
		config = DefaultDriverConfig()
	}
	return &ChromeDPDriver{
		config:  config,
		targets: make(map[string]*cdpTarget),
		events:  make(chan event.Event, config.EventBuffer),
	}
}

// Name returns the backend name.
func (d *ChromeDPDriver) Name() string {
	return "chromedp"
}

// Capabilities reports backend support.
func (d *ChromeDPDriver) Capabilities() Capabilities {
	return Capabilities{NativeKeyDispatch: true}
}

// EventStream returns the forwarded protocol event channel.
func (d *ChromeDPDriver) EventStream() <-chan event.Event {
	return d.events
}

// buildExecAllocatorOptions builds chromedp options from config.
func (d *ChromeDPDriver) buildExecAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.config.Headless),
		chromedp.Flag("disable-gpu", d.config.DisableGPU),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(d.config.WindowWidth, d.config.WindowHeight),
	)

	if d.config.HideAutomation {
		opts = append(opts, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	}
	if d.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if d.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(d.config.UserAgent))
	}
	if d.config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(d.config.UserDataDir))
	}

	return opts
}

// Start launches the browser process and connects to it.
func (d *ChromeDPDriver) Start(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("browser already running")
	}

	// Create allocator context from context.Background() to ensure browser
	// lifecycle is independent of the caller's context
	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(
		context.Background(),
		d.buildExecAllocatorOptions()...,
	)
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx)

	// Launch eagerly so connection failures surface here instead of on the
	// first command.
	if err := chromedp.Run(d.browserCtx); err != nil {
		d.browserCancel()
		d.allocCancel()
		d.browserCtx, d.allocCtx = nil, nil
		return &ConnectionError{Backend: d.Name(), Err: err}
	}

	d.sessionID = sessionID
	d.running = true
	return nil
}

// Stop closes the browser and the event stream.
func (d *ChromeDPDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	for id, t := range d.targets {
		t.cancel()
		delete(d.targets, id)
	}
	if d.browserCancel != nil {
		d.browserCancel()
		d.browserCancel = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
	d.browserCtx = nil
	d.allocCtx = nil
	d.running = false

	d.emitMu.Lock()
	d.emitClosed = true
	close(d.events)
	d.emitMu.Unlock()

	return nil
}

// IsRunning returns true if the browser is active.
func (d *ChromeDPDriver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// emit forwards an event without blocking; events are dropped when the
// stream consumer falls behind.
func (d *ChromeDPDriver) emit(e event.Event) {
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

// CreateTarget creates a new page target and attaches a context to it.
// Using target.CreateTarget guarantees a new tab (chromedp.NewContext
// without WithTargetID may reuse an existing blank target).
func (d *ChromeDPDriver) CreateTarget(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.browserCtx == nil {
		return "", ErrNotRunning
	}
	if url == "" {
		url = "about:blank"
	}

	var newTargetID target.ID
	if err := chromedp.Run(d.browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			newTargetID, err = target.CreateTarget(url).Do(ctx)
			return err
		}),
	); err != nil {
		return "", classifyError(err)
	}

	tabCtx, tabCancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(newTargetID))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return "", classifyError(err)
	}

	id := string(newTargetID)
	t := &cdpTarget{ctx: tabCtx, cancel: tabCancel, lastURL: url}
	d.targets[id] = t
	d.listenTarget(id, t)

	return id, nil
}

// listenTarget forwards protocol events for one target onto the event
// stream, tagged with session and target IDs.
func (d *ChromeDPDriver) listenTarget(id string, t *cdpTarget) {
	sessionID := d.sessionID
	chromedp.ListenTarget(t.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID != "" {
				return
			}
			t.setURL(e.Frame.URL)
			d.emit(event.NewFrameNavigated(sessionID, id, e.Frame.URL))
		case *page.EventDomContentEventFired:
			d.emit(event.NewDOMContentReady(sessionID, id))
		case *page.EventLoadEventFired:
			d.emit(event.NewNavigationCompleted(sessionID, id, t.url()))
		case *inspector.EventTargetCrashed:
			d.emit(event.NewPageCrashed(sessionID, id))
		case *runtime.EventConsoleAPICalled:
			text := ""
			for _, arg := range e.Args {
				if arg.Value == nil {
					continue
				}
				if text != "" {
					text += " "
				}
				text += string(arg.Value)
			}
			d.emit(event.NewConsoleMessage(sessionID, id, string(e.Type), text))
		}
	})
}

// CloseTarget closes a page target by canceling its context.
func (d *ChromeDPDriver) CloseTarget(ctx context.Context, targetID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.targets[targetID]
	if !ok {
		return ErrTargetClosed
	}
	t.cancel()
	delete(d.targets, targetID)
	return nil
}

// targetCtx returns the attached context for a target, bounded by the
// configured action timeout.
func (d *ChromeDPDriver) targetCtx(targetID string) (context.Context, context.CancelFunc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil, nil, ErrNotRunning
	}
	t, ok := d.targets[targetID]
	if !ok {
		return nil, nil, ErrTargetClosed
	}
	ctx, cancel := context.WithTimeout(t.ctx, d.config.ActionTimeout)
	return ctx, cancel, nil
}

// Navigate issues the navigation command and returns once it is accepted.
// Load completion is reported on the event stream, not here.
func (d *ChromeDPDriver) Navigate(ctx context.Context, targetID, url string) error {
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return err
	}
	defer cancel()

	return classifyError(chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigation refused: %s", errText)
		}
		return nil
	})))
}

// QuerySelector resolves a selector against the current document.
func (d *ChromeDPDriver) QuerySelector(ctx context.Context, targetID, selector string) (ElementRef, error) {
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return ElementRef{}, err
	}
	defer cancel()

	var nodeID cdp.NodeID
	err = chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		root, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		nodeID, err = dom.QuerySelector(root.NodeID, selector).Do(ctx)
		return err
	}))
	if err != nil {
		return ElementRef{}, classifyError(err)
	}
	if nodeID == 0 {
		return ElementRef{}, fmt.Errorf("%w: %q", ErrElementNotFound, selector)
	}
	return ElementRef{
		ID:       strconv.FormatInt(int64(nodeID), 10),
		Selector: selector,
	}, nil
}

func nodeIDFromRef(ref ElementRef) (cdp.NodeID, error) {
	n, err := strconv.ParseInt(ref.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad node reference %q", ErrStaleElement, ref.ID)
	}
	return cdp.NodeID(n), nil
}

// Focus focuses the referenced element via the DOM domain.
func (d *ChromeDPDriver) Focus(ctx context.Context, targetID string, ref ElementRef) error {
	nodeID, err := nodeIDFromRef(ref)
	if err != nil {
		return err
	}
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return err
	}
	defer cancel()

	return classifyError(chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.Focus().WithNodeID(nodeID).Do(ctx)
	})))
}

// Click scrolls the element into view and dispatches a left click at the
// center of its content box.
func (d *ChromeDPDriver) Click(ctx context.Context, targetID string, ref ElementRef) error {
	nodeID, err := nodeIDFromRef(ref)
	if err != nil {
		return err
	}
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return err
	}
	defer cancel()

	return classifyError(chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(nodeID).Do(ctx); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(nodeID).Do(ctx)
		if err != nil {
			return err
		}
		if len(box.Content) < 8 {
			return fmt.Errorf("element has no content box")
		}
		x := (box.Content[0] + box.Content[4]) / 2
		y := (box.Content[1] + box.Content[5]) / 2

		p := &input.DispatchMouseEventParams{
			Type:       input.MousePressed,
			X:          x,
			Y:          y,
			Button:     input.Left,
			ClickCount: 1,
		}
		if err := p.Do(ctx); err != nil {
			return err
		}
		p.Type = input.MouseReleased
		return p.Do(ctx)
	})))
}

// TypeText inserts text at the current focus via Input.insertText, which
// delivers the full string without synthesizing per-character key events.
func (d *ChromeDPDriver) TypeText(ctx context.Context, targetID string, ref ElementRef, text string) error {
	if _, err := nodeIDFromRef(ref); err != nil {
		return err
	}
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return err
	}
	defer cancel()

	return classifyError(chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	})))
}

// DispatchEnter sends a native Enter key press to the focused element.
func (d *ChromeDPDriver) DispatchEnter(ctx context.Context, targetID string) error {
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return err
	}
	defer cancel()

	return classifyError(chromedp.Run(tctx, chromedp.KeyEvent(kb.Enter)))
}

// Evaluate runs a script and returns its JSON-serialized result.
func (d *ChromeDPDriver) Evaluate(ctx context.Context, targetID, script string) (json.RawMessage, error) {
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var result json.RawMessage
	err = chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exp, err := runtime.Evaluate(script).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			detail := exp.Text
			if exp.Exception != nil && exp.Exception.Description != "" {
				detail = exp.Exception.Description
			}
			return &ScriptError{Detail: detail}
		}
		if obj == nil || obj.Value == nil {
			result = json.RawMessage("null")
			return nil
		}
		result = json.RawMessage(obj.Value)
		return nil
	}))
	if err != nil {
		var se *ScriptError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, classifyError(err)
	}
	return result, nil
}

// CaptureScreenshot captures a rendering of the target page.
func (d *ChromeDPDriver) CaptureScreenshot(ctx context.Context, targetID string, opts CaptureOptions) ([]byte, error) {
	tctx, cancel, err := d.targetCtx(targetID)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var buf []byte
	err = chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		p := page.CaptureScreenshot().WithCaptureBeyondViewport(opts.FullPage)
		switch opts.Format {
		case "jpeg":
			p = p.WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(int64(opts.Quality))
		default:
			p = p.WithFormat(page.CaptureScreenshotFormatPng)
		}
		var err error
		buf, err = p.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, classifyError(err)
	}
	return buf, nil
}

// Ensure ChromeDPDriver implements Driver
var _ Driver = (*ChromeDPDriver)(nil)
