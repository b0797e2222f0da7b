// Package session manages browser sessions and the pages within them.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"webpilot-go/core/event"
	"webpilot-go/core/eventbus"
	"webpilot-go/infrastructure/browser"
)

// Config holds tuning knobs for session operations.
type Config struct {
	// NavigationTimeout bounds the wait for a navigation ready signal.
	NavigationTimeout time.Duration

	// SettleDelay is the pause after the ready signal before the page is
	// considered Ready, giving late scripts a chance to run. Capped at
	// one second.
	SettleDelay time.Duration

	// FocusSettle is the pause after focusing an element before input is
	// dispatched.
	FocusSettle time.Duration

	// FindAttempts is how many times an element lookup is tried before
	// giving up.
	FindAttempts int

	// FindInterval is the pause between element lookup attempts.
	FindInterval time.Duration
}

// maxSettleDelay bounds SettleDelay so a misconfigured value cannot turn
// every navigation into a long stall.
const maxSettleDelay = time.Second

// DefaultConfig returns the default session configuration.
func DefaultConfig() *Config {
	return &Config{
		NavigationTimeout: 30 * time.Second,
		SettleDelay:       500 * time.Millisecond,
		FocusSettle:       100 * time.Millisecond,
		FindAttempts:      3,
		FindInterval:      200 * time.Millisecond,
	}
}

// Session owns one browser instance and the pages opened in it. A single
// goroutine drains the driver's event stream for the session's lifetime,
// routing page events to their pages and republishing everything on the
// event bus.
type Session struct {
	id       string
	driver   browser.Driver
	eventBus eventbus.EventBus
	config   *Config
	logger   *slog.Logger

	mu     sync.Mutex
	pages  map[string]*Page
	closed bool
	wg     sync.WaitGroup
}

// Open starts the browser and returns a live session. A failed browser
// start surfaces as *browser.ConnectionError.
func Open(ctx context.Context, id string, driver browser.Driver, bus eventbus.EventBus, cfg *Config, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:       id,
		driver:   driver,
		eventBus: bus,
		config:   cfg,
		logger:   logger.With("session_id", id),
		pages:    make(map[string]*Page),
	}

	if err := driver.Start(ctx, id); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.consumeEvents()

	s.eventBus.Publish(event.NewSessionOpened(id, driver.Name()))
	s.logger.Info("Session opened", "backend", driver.Name())
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration.
func (s *Session) Config() *Config {
	return s.config
}

// consumeEvents drains the driver event stream until the driver stops.
// This is the only goroutine reading the stream.
func (s *Session) consumeEvents() {
	defer s.wg.Done()

	for e := range s.driver.EventStream() {
		if pe, ok := e.(event.PageEvent); ok {
			s.mu.Lock()
			p := s.pages[pe.PageID()]
			s.mu.Unlock()
			if p != nil {
				p.handleEvent(e)
			}
		}
		s.eventBus.Publish(e)
	}
}

// NewPage opens a new page and navigates it to url, blocking until the
// page is Ready. The returned page is registered with the session until
// closed.
func (s *Session) NewPage(ctx context.Context, url string) (*Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	// The target starts blank so the page can be registered for event
	// routing before any navigation is in flight.
	targetID, err := s.driver.CreateTarget(ctx, "")
	if err != nil {
		return nil, &PageCreationError{URL: url, Err: err}
	}

	p := newPage(targetID, s)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = s.driver.CloseTarget(ctx, targetID)
		return nil, ErrSessionClosed
	}
	s.pages[targetID] = p
	s.mu.Unlock()

	s.eventBus.Publish(event.NewPageCreated(s.id, targetID, url))

	if url != "" {
		if err := p.Navigate(ctx, url); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Page returns a registered page by ID, or nil.
func (s *Session) Page(id string) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[id]
}

// Pages returns all registered pages.
func (s *Session) Pages() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := make([]*Page, 0, len(s.pages))
	for _, p := range s.pages {
		pages = append(pages, p)
	}
	return pages
}

// ClosePage closes a page and unregisters it. Closing an unknown or
// already-closed page is a no-op.
func (s *Session) ClosePage(ctx context.Context, id string) error {
	s.mu.Lock()
	p, ok := s.pages[id]
	if ok {
		delete(s.pages, id)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return p.close(ctx)
}

// Close shuts the session down: every page is closed, the browser is
// stopped and the event consumer drains out. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pages := make([]*Page, 0, len(s.pages))
	for id, p := range s.pages {
		pages = append(pages, p)
		delete(s.pages, id)
	}
	s.mu.Unlock()

	for _, p := range pages {
		if err := p.close(ctx); err != nil {
			s.logger.Warn("Page close failed", "page_id", p.ID(), "error", err)
		}
	}

	err := s.driver.Stop()

	// The driver closed its stream; wait for the consumer to drain.
	s.wg.Wait()

	s.eventBus.Publish(event.NewSessionClosed(s.id, err))
	s.logger.Info("Session closed")
	return err
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// unregisterPage removes a page closed through Page.Close.
func (s *Session) unregisterPage(id string) {
	s.mu.Lock()
	delete(s.pages, id)
	s.mu.Unlock()
}
