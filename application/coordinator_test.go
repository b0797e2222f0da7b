package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"webpilot-go/application/session"
	"webpilot-go/core/event"
	"webpilot-go/core/eventbus"
	domaintask "webpilot-go/domain/task"
	"webpilot-go/infrastructure/browser"
)

// stubDriver is a minimal in-memory driver for coordinator tests.
type stubDriver struct {
	mu      sync.Mutex
	running bool
	id      string
	events  chan event.Event
	next    int
}

func newStubDriver() *stubDriver {
	return &stubDriver{events: make(chan event.Event, 64)}
}

func (d *stubDriver) Start(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	d.running = true
	d.id = sessionID
	d.mu.Unlock()
	return nil
}

func (d *stubDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	close(d.events)
	return nil
}

func (d *stubDriver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *stubDriver) Name() string                       { return "stub" }
func (d *stubDriver) Capabilities() browser.Capabilities { return browser.Capabilities{NativeKeyDispatch: true} }
func (d *stubDriver) EventStream() <-chan event.Event    { return d.events }

func (d *stubDriver) CreateTarget(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	d.next++
	id := fmt.Sprintf("t%d", d.next)
	d.mu.Unlock()
	return id, nil
}

func (d *stubDriver) CloseTarget(ctx context.Context, targetID string) error { return nil }

func (d *stubDriver) Navigate(ctx context.Context, targetID, url string) error {
	d.mu.Lock()
	sessionID := d.id
	running := d.running
	d.mu.Unlock()
	if running {
		go func() {
			time.Sleep(time.Millisecond)
			d.mu.Lock()
			defer d.mu.Unlock()
			if d.running {
				d.events <- event.NewNavigationCompleted(sessionID, targetID, url)
			}
		}()
	}
	return nil
}

func (d *stubDriver) QuerySelector(ctx context.Context, targetID, selector string) (browser.ElementRef, error) {
	return browser.ElementRef{ID: "1", Selector: selector}, nil
}

func (d *stubDriver) Focus(ctx context.Context, targetID string, ref browser.ElementRef) error { return nil }
func (d *stubDriver) Click(ctx context.Context, targetID string, ref browser.ElementRef) error { return nil }
func (d *stubDriver) TypeText(ctx context.Context, targetID string, ref browser.ElementRef, text string) error {
	return nil
}
func (d *stubDriver) DispatchEnter(ctx context.Context, targetID string) error { return nil }

func (d *stubDriver) Evaluate(ctx context.Context, targetID, script string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (d *stubDriver) CaptureScreenshot(ctx context.Context, targetID string, opts browser.CaptureOptions) ([]byte, error) {
	return []byte{1}, nil
}

var _ browser.Driver = (*stubDriver)(nil)

// recordingSink remembers recorded run results.
type recordingSink struct {
	mu      sync.Mutex
	results []*session.Result
}

func (r *recordingSink) Record(ctx context.Context, result *session.Result) error {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
	return nil
}

func testCoordinator(t *testing.T) (*Coordinator, *recordingSink) {
	t.Helper()

	bus := eventbus.New(100)
	t.Cleanup(bus.Close)

	registry := domaintask.NewRegistry()
	registry.Register(&domaintask.Task{
		Name:     "ping",
		StartURL: "https://example.com",
		Steps: []domaintask.Step{
			{Action: domaintask.ActionTypeExtract, Selector: ".x"},
		},
	})

	sink := &recordingSink{}
	cfg := session.DefaultConfig()
	cfg.SettleDelay = time.Millisecond
	cfg.NavigationTimeout = time.Second

	c := NewCoordinator(&CoordinatorConfig{
		EventBus:      bus,
		TaskRegistry:  registry,
		DriverFactory: func() browser.Driver { return newStubDriver() },
		SessionConfig: cfg,
		RunSink:       sink,
	})
	t.Cleanup(c.Stop)
	return c, sink
}

func TestCoordinator_SessionLifecycle(t *testing.T) {
	c, _ := testCoordinator(t)

	s1, err := c.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	s2, err := c.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if s1.ID() == s2.ID() {
		t.Error("session IDs must be unique")
	}
	if c.SessionCount() != 2 {
		t.Errorf("expected 2 sessions, got %d", c.SessionCount())
	}

	if err := c.CloseSession(context.Background(), s1.ID()); err != nil {
		t.Errorf("CloseSession() error = %v", err)
	}
	if c.SessionCount() != 1 {
		t.Errorf("expected 1 session after close, got %d", c.SessionCount())
	}
	if err := c.CloseSession(context.Background(), "nope"); err != nil {
		t.Errorf("closing unknown session should be a no-op, got %v", err)
	}
}

func TestCoordinator_RunTask(t *testing.T) {
	c, sink := testCoordinator(t)

	s, err := c.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	result, err := c.RunTask(context.Background(), s.ID(), "ping")
	if err != nil {
		t.Fatalf("RunTask() error = %v", err)
	}
	if result.TaskName != "ping" {
		t.Errorf("unexpected task name %q", result.TaskName)
	}
	if len(sink.results) != 1 {
		t.Errorf("run should be recorded, got %d records", len(sink.results))
	}

	if _, err := c.RunTask(context.Background(), s.ID(), "missing"); err == nil {
		t.Error("expected error for unknown task")
	}
	if _, err := c.RunTask(context.Background(), "missing", "ping"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestCoordinator_RunTaskAll(t *testing.T) {
	c, sink := testCoordinator(t)

	for i := 0; i < 3; i++ {
		if _, err := c.OpenSession(context.Background()); err != nil {
			t.Fatalf("OpenSession() error = %v", err)
		}
	}

	if err := c.RunTaskAll(context.Background(), "ping"); err != nil {
		t.Fatalf("RunTaskAll() error = %v", err)
	}
	if len(sink.results) != 3 {
		t.Errorf("expected 3 recorded runs, got %d", len(sink.results))
	}
}

func TestCoordinator_RunTaskAllNoSessions(t *testing.T) {
	c, _ := testCoordinator(t)
	if err := c.RunTaskAll(context.Background(), "ping"); err == nil {
		t.Error("expected error with no open sessions")
	}
}
