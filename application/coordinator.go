// Package application provides the application layer for orchestrating sessions.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"webpilot-go/application/session"
	"webpilot-go/core/event"
	"webpilot-go/core/eventbus"
	"webpilot-go/domain/artifact"
	domaintask "webpilot-go/domain/task"
	"webpilot-go/infrastructure/browser"
)

// DriverFactory creates browser drivers, one per session.
type DriverFactory func() browser.Driver

// RunSink receives completed task run results for persistence.
type RunSink interface {
	Record(ctx context.Context, result *session.Result) error
}

// Coordinator manages multiple sessions and runs tasks across them.
type Coordinator struct {
	sessions   map[string]*session.Session
	sessionsMu sync.RWMutex
	nextID     atomic.Uint64

	eventBus      eventbus.EventBus
	taskRegistry  *domaintask.Registry
	driverFactory DriverFactory
	sessionConfig *session.Config
	artifactSink  artifact.Sink
	runSink       RunSink
	logger        *slog.Logger
}

// CoordinatorConfig holds configuration for the Coordinator.
type CoordinatorConfig struct {
	EventBus      eventbus.EventBus
	TaskRegistry  *domaintask.Registry
	DriverFactory DriverFactory
	SessionConfig *session.Config
	ArtifactSink  artifact.Sink
	RunSink       RunSink
	Logger        *slog.Logger
}

// NewCoordinator creates a new session coordinator.
func NewCoordinator(cfg *CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SessionConfig == nil {
		cfg.SessionConfig = session.DefaultConfig()
	}

	c := &Coordinator{
		sessions:      make(map[string]*session.Session),
		eventBus:      cfg.EventBus,
		taskRegistry:  cfg.TaskRegistry,
		driverFactory: cfg.DriverFactory,
		sessionConfig: cfg.SessionConfig,
		artifactSink:  cfg.ArtifactSink,
		runSink:       cfg.RunSink,
		logger:        cfg.Logger,
	}

	if c.eventBus != nil {
		c.eventBus.Subscribe(c.handleEvent)
	}

	return c
}

// OpenSession starts a new browser session.
func (c *Coordinator) OpenSession(ctx context.Context) (*session.Session, error) {
	id := fmt.Sprintf("session-%d", c.nextID.Add(1))

	driver := c.driverFactory()
	s, err := session.Open(ctx, id, driver, c.eventBus, c.sessionConfig, c.logger)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}

	c.sessionsMu.Lock()
	c.sessions[id] = s
	c.sessionsMu.Unlock()

	return s, nil
}

// CloseSession closes one session. Unknown IDs are a no-op.
func (c *Coordinator) CloseSession(ctx context.Context, id string) error {
	c.sessionsMu.Lock()
	s, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.sessionsMu.Unlock()

	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// Session returns a session by ID, or nil.
func (c *Coordinator) Session(id string) *session.Session {
	c.sessionsMu.RLock()
	defer c.sessionsMu.RUnlock()
	return c.sessions[id]
}

// Sessions returns all open sessions.
func (c *Coordinator) Sessions() []*session.Session {
	c.sessionsMu.RLock()
	defer c.sessionsMu.RUnlock()

	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// SessionCount returns the number of open sessions.
func (c *Coordinator) SessionCount() int {
	c.sessionsMu.RLock()
	defer c.sessionsMu.RUnlock()
	return len(c.sessions)
}

// RunTask runs a registered task on one session and records the result.
func (c *Coordinator) RunTask(ctx context.Context, sessionID, taskName string) (*session.Result, error) {
	s := c.Session(sessionID)
	if s == nil {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	t := c.taskRegistry.Get(taskName)
	if t == nil {
		return nil, fmt.Errorf("unknown task %s", taskName)
	}

	runner := session.NewTaskRunner(s, c.artifactSink, c.logger)
	result, err := runner.Run(ctx, t)

	if result != nil && c.runSink != nil {
		if recErr := c.runSink.Record(ctx, result); recErr != nil {
			c.logger.Warn("Failed to record task run", "task", taskName, "error", recErr)
		}
	}
	return result, err
}

// RunTaskAll runs a registered task on every open session concurrently.
// The first failure cancels the remaining runs.
func (c *Coordinator) RunTaskAll(ctx context.Context, taskName string) error {
	sessions := c.Sessions()
	if len(sessions) == 0 {
		return fmt.Errorf("no open sessions")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			_, err := c.RunTask(gctx, s.ID(), taskName)
			return err
		})
	}
	return g.Wait()
}

// Stop closes all sessions in parallel, bounded by a timeout.
func (c *Coordinator) Stop() {
	c.sessionsMu.Lock()
	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*session.Session)
	c.sessionsMu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(sess *session.Session) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sess.Close(ctx); err != nil {
				c.logger.Warn("Session close failed", "session_id", sess.ID(), "error", err)
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		c.logger.Warn("Coordinator stop timeout, some sessions may not have stopped cleanly")
	}

	c.logger.Info("Coordinator stopped")
}

// handleEvent surfaces notable session events in the log.
func (c *Coordinator) handleEvent(e event.Event) {
	switch ev := e.(type) {
	case *event.PageCrashed:
		c.logger.Warn("Page crashed", "session_id", ev.SessionID(), "page_id", ev.PageID())
	case *event.OperationFailed:
		c.logger.Debug("Operation failed",
			"session_id", ev.SessionID(), "page_id", ev.PageID(),
			"operation", ev.Operation, "error", ev.Error)
	case *event.TaskStopped:
		if ev.Reason == event.StopReasonError {
			c.logger.Warn("Task stopped with error", "task", ev.TaskName, "error", ev.Error)
		}
	}
}
