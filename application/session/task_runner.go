package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"webpilot-go/core/event"
	"webpilot-go/domain/artifact"
	domaintask "webpilot-go/domain/task"
	"webpilot-go/infrastructure/browser"
)

// TaskRunner executes task definitions against a session. Each run opens
// a fresh page, walks the steps in order and closes the page when done.
type TaskRunner struct {
	session *Session
	sink    artifact.Sink
	logger  *slog.Logger

	// defaultStepTimeout bounds steps that carry no explicit timeout.
	defaultStepTimeout time.Duration
}

// NewTaskRunner creates a task runner. The sink receives captured
// artifacts; it may be nil when no step captures anything.
func NewTaskRunner(session *Session, sink artifact.Sink, logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRunner{
		session:            session,
		sink:               sink,
		logger:             logger.With("session_id", session.ID()),
		defaultStepTimeout: 30 * time.Second,
	}
}

// StepResult holds the outcome of one executed step.
type StepResult struct {
	Index     int
	Action    domaintask.ActionType
	Err       error
	Extracted []string        // extract steps
	Raw       json.RawMessage // evaluate steps
	Artifact  *artifact.Artifact
}

// Result holds the outcome of a full task run.
type Result struct {
	TaskName string
	Steps    []StepResult
	Reason   event.StopReason
	Err      error
}

// Extracted returns the values collected by the first successful extract
// step, or nil.
func (r *Result) Extracted() []string {
	for _, s := range r.Steps {
		if s.Action == domaintask.ActionTypeExtract && s.Err == nil {
			return s.Extracted
		}
	}
	return nil
}

// Run executes the task to completion. The page is always closed before
// returning; the result carries per-step outcomes even on failure.
func (r *TaskRunner) Run(ctx context.Context, t *domaintask.Task) (*Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	result := &Result{TaskName: t.Name, Reason: event.StopReasonNormal}
	r.session.eventBus.Publish(event.NewTaskStarted(r.session.ID(), t.Name))
	r.logger.Info("Task started", "task", t.Name)

	page, err := r.session.NewPage(ctx, t.StartURL)
	if err != nil {
		result.Reason = event.StopReasonError
		result.Err = err
		r.finish(t.Name, result)
		if page != nil {
			_ = page.Close(context.Background())
		}
		return result, err
	}
	defer func() {
		_ = page.Close(context.Background())
	}()

	// The element most recently resolved, click or type steps update it
	// and submit acts on it.
	var current *ElementHandle

	for i, step := range t.Steps {
		select {
		case <-ctx.Done():
			result.Reason = event.StopReasonManual
			result.Err = ctx.Err()
			r.finish(t.Name, result)
			return result, ctx.Err()
		default:
		}

		if r.session.IsClosed() {
			result.Reason = event.StopReasonSessionClosed
			result.Err = ErrSessionClosed
			r.finish(t.Name, result)
			return result, ErrSessionClosed
		}

		sr, handle := r.runStep(ctx, page, i, step, current)
		if handle != nil {
			current = handle
		}
		result.Steps = append(result.Steps, sr)
		r.session.eventBus.Publish(event.NewTaskStepExecuted(r.session.ID(), i, string(step.Action)))

		if sr.Err != nil {
			r.logger.Warn("Step failed", "task", t.Name, "step", i, "action", step.Action, "error", sr.Err)
			if step.ContinueOnFailure {
				continue
			}
			result.Reason = event.StopReasonError
			result.Err = sr.Err
			r.finish(t.Name, result)
			return result, sr.Err
		}
	}

	r.finish(t.Name, result)
	return result, nil
}

func (r *TaskRunner) finish(name string, result *Result) {
	r.session.eventBus.Publish(event.NewTaskStopped(r.session.ID(), name, result.Reason, result.Err))
	r.logger.Info("Task stopped", "task", name, "reason", result.Reason.String())
}

// runStep executes one step, returning its result and the element handle
// it resolved, if any.
func (r *TaskRunner) runStep(ctx context.Context, page *Page, index int, step domaintask.Step, current *ElementHandle) (StepResult, *ElementHandle) {
	sr := StepResult{Index: index, Action: step.Action}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = r.defaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch step.Action {
	case domaintask.ActionTypeNavigate:
		sr.Err = page.Navigate(stepCtx, step.URL)

	case domaintask.ActionTypeClick:
		h, err := page.FindElement(stepCtx, step.Selector)
		if err != nil {
			sr.Err = err
			return sr, nil
		}
		sr.Err = page.Click(stepCtx, h)
		return sr, h

	case domaintask.ActionTypeType:
		h, err := page.FindElement(stepCtx, step.Selector)
		if err != nil {
			sr.Err = err
			return sr, nil
		}
		if err := page.Focus(stepCtx, h); err != nil {
			sr.Err = err
			return sr, h
		}
		sr.Err = page.Type(stepCtx, h, step.Text)
		return sr, h

	case domaintask.ActionTypeSubmit:
		if current == nil {
			sr.Err = fmt.Errorf("submit step %d has no preceding element", index)
			return sr, nil
		}
		sr.Err = page.Submit(stepCtx, current)

	case domaintask.ActionTypeEvaluate:
		sr.Raw, sr.Err = page.Evaluate(stepCtx, step.Script)

	case domaintask.ActionTypeExtract:
		sr.Extracted, sr.Err = page.ExtractAttributes(stepCtx, step.Selector, step.Attribute)

	case domaintask.ActionTypeCapture:
		opts := browser.DefaultCaptureOptions()
		if step.Format != "" {
			opts.Format = step.Format
		}
		opts.FullPage = step.FullPage
		label := step.Label
		if label == "" {
			label = fmt.Sprintf("step-%d", index)
		}
		a, err := page.CaptureScreenshot(stepCtx, label, opts)
		if err != nil {
			sr.Err = err
			return sr, nil
		}
		sr.Artifact = a
		if r.sink != nil {
			sr.Err = r.sink.Store(stepCtx, a)
		}

	case domaintask.ActionTypeWait:
		timer := time.NewTimer(step.Duration)
		select {
		case <-timer.C:
		case <-stepCtx.Done():
			timer.Stop()
			sr.Err = stepCtx.Err()
		}

	default:
		sr.Err = fmt.Errorf("unknown action type %q", step.Action)
	}

	return sr, nil
}
