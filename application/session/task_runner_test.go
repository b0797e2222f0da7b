package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"webpilot-go/core/event"
	"webpilot-go/domain/artifact"
	domaintask "webpilot-go/domain/task"
	"webpilot-go/infrastructure/browser"
)

// memorySink collects artifacts in memory.
type memorySink struct {
	mu        sync.Mutex
	artifacts []*artifact.Artifact
	storeErr  error
}

func (s *memorySink) Store(ctx context.Context, a *artifact.Artifact) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.mu.Lock()
	s.artifacts = append(s.artifacts, a)
	s.mu.Unlock()
	return nil
}

func searchTask() *domaintask.Task {
	return &domaintask.Task{
		Name:     "search",
		StartURL: "https://en.wikipedia.org",
		Steps: []domaintask.Step{
			{Action: domaintask.ActionTypeClick, Selector: "#p-search > a"},
			{Action: domaintask.ActionTypeType, Selector: "input[name='search']", Text: "Rust programming language"},
			{Action: domaintask.ActionTypeSubmit},
			{Action: domaintask.ActionTypeWait, Duration: time.Millisecond},
			{Action: domaintask.ActionTypeExtract, Selector: "h1"},
			{Action: domaintask.ActionTypeCapture, Label: "results", Format: "png"},
		},
	}
}

func TestTaskRunner_Run(t *testing.T) {
	driver := newFakeDriver()
	driver.evalResult = json.RawMessage(`["Rust (programming language)"]`)
	s, _ := openTestSession(t, driver)

	sink := &memorySink{}
	runner := NewTaskRunner(s, sink, nil)

	result, err := runner.Run(context.Background(), searchTask())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Reason != event.StopReasonNormal {
		t.Errorf("expected normal stop, got %s", result.Reason)
	}
	if len(result.Steps) != 6 {
		t.Fatalf("expected 6 step results, got %d", len(result.Steps))
	}

	// The search landed on the article, so its title comes back.
	extracted := result.Extracted()
	if len(extracted) != 1 || extracted[0] != "Rust (programming language)" {
		t.Errorf("unexpected extraction %v", extracted)
	}

	if len(sink.artifacts) != 1 {
		t.Fatalf("expected 1 stored artifact, got %d", len(sink.artifacts))
	}
	if sink.artifacts[0].Label != "results" || sink.artifacts[0].Format != "png" {
		t.Errorf("unexpected artifact %+v", sink.artifacts[0])
	}

	if len(driver.typed) != 1 || driver.typed[0] != "Rust programming language" {
		t.Errorf("unexpected typed input %v", driver.typed)
	}
	if driver.enterCalls != 1 {
		t.Errorf("expected submit via native Enter, got %d", driver.enterCalls)
	}

	// The page opened for the run is released afterwards.
	if len(s.Pages()) != 0 {
		t.Errorf("expected no pages after run, got %d", len(s.Pages()))
	}
}

func TestTaskRunner_CatalogueTitles(t *testing.T) {
	titles := []string{
		"The Grand Design",
		"The Quantum Universe",
		"Seven Brief Lessons on Physics",
		"The Elegant Universe",
		"The Origin of Species",
		"The Selfish Gene",
		"A Brief History of Time",
		"Cosmos",
		"The Gene: An Intimate History",
		"Sapiens: A Brief History of Humankind",
		"The Immortal Life of Henrietta Lacks",
		"The Man Who Mistook His Wife for a Hat",
		"The Disappearing Spoon",
		"Packing for Mars",
		"Stiff: The Curious Lives of Human Cadavers",
		"The Body Keeps the Score",
	}
	raw, err := json.Marshal(titles)
	if err != nil {
		t.Fatal(err)
	}

	driver := newFakeDriver()
	driver.evalResult = json.RawMessage(raw)
	s, _ := openTestSession(t, driver)

	runner := NewTaskRunner(s, nil, nil)
	tk := &domaintask.Task{
		Name:     "catalogue",
		StartURL: "https://books.toscrape.com/catalogue/category/books/science_22/index.html",
		Steps: []domaintask.Step{
			{Action: domaintask.ActionTypeWait, Duration: time.Millisecond},
			{Action: domaintask.ActionTypeExtract, Selector: ".product_pod h3 a", Attribute: "title"},
		},
	}

	result, err := runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	extracted := result.Extracted()
	if len(extracted) != 16 {
		t.Fatalf("expected 16 titles, got %d", len(extracted))
	}
	for i, title := range extracted {
		if title == "" {
			t.Errorf("title %d is empty", i)
		}
		if title != titles[i] {
			t.Errorf("title %d out of order: got %q, want %q", i, title, titles[i])
		}
	}
}

func TestTaskRunner_StopsOnStepFailure(t *testing.T) {
	driver := newFakeDriver()
	s, _ := openTestSession(t, driver)

	runner := NewTaskRunner(s, nil, nil)
	tk := &domaintask.Task{
		Name:     "failing",
		StartURL: "https://example.com",
		Steps: []domaintask.Step{
			{Action: domaintask.ActionTypeClick, Selector: "#missing"},
			{Action: domaintask.ActionTypeWait, Duration: time.Millisecond},
		},
	}

	driver.queryErrs = []error{
		browser.ErrElementNotFound,
		browser.ErrElementNotFound,
		browser.ErrElementNotFound,
	}

	result, err := runner.Run(context.Background(), tk)
	if !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if result.Reason != event.StopReasonError {
		t.Errorf("expected error stop reason, got %s", result.Reason)
	}
	if len(result.Steps) != 1 {
		t.Errorf("expected run to stop at the failing step, got %d results", len(result.Steps))
	}
}

func TestTaskRunner_ContinueOnFailure(t *testing.T) {
	driver := newFakeDriver()
	s, _ := openTestSession(t, driver)

	runner := NewTaskRunner(s, nil, nil)
	tk := &domaintask.Task{
		Name:     "tolerant",
		StartURL: "https://example.com",
		Steps: []domaintask.Step{
			{Action: domaintask.ActionTypeClick, Selector: "#missing", ContinueOnFailure: true},
			{Action: domaintask.ActionTypeWait, Duration: time.Millisecond},
		},
	}

	driver.queryErrs = []error{
		browser.ErrElementNotFound,
		browser.ErrElementNotFound,
		browser.ErrElementNotFound,
	}

	result, err := runner.Run(context.Background(), tk)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Reason != event.StopReasonNormal {
		t.Errorf("expected normal stop, got %s", result.Reason)
	}
	if len(result.Steps) != 2 {
		t.Errorf("expected both steps recorded, got %d", len(result.Steps))
	}
	if result.Steps[0].Err == nil {
		t.Error("first step should record its failure")
	}
}

func TestTaskRunner_InvalidTask(t *testing.T) {
	driver := newFakeDriver()
	s, _ := openTestSession(t, driver)

	runner := NewTaskRunner(s, nil, nil)
	if _, err := runner.Run(context.Background(), &domaintask.Task{Name: "empty"}); err == nil {
		t.Error("expected validation error for a task without steps")
	}
}
