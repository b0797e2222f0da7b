// Package task defines browser automation task types and validation.
package task

import (
	"fmt"
	"time"
)

// Task represents an automation task with metadata and ordered steps.
type Task struct {
	// Name is the unique identifier for this task
	Name string

	// Description provides a human-readable explanation of what the task does
	Description string

	// Version is the task version for compatibility tracking
	Version string

	// Author is the task creator
	Author string

	// StartURL is the page the task begins on
	StartURL string

	// Steps are the ordered execution steps
	Steps []Step
}

// Step represents a single step in task execution.
type Step struct {
	// Action is the action type (navigate, click, type, etc.)
	Action ActionType

	// URL is the navigation target for navigate actions
	URL string

	// Selector is the CSS selector for element actions
	Selector string

	// Text is the input for type actions
	Text string

	// Script is the expression for evaluate and extract actions
	Script string

	// Attribute is the per-element property for extract actions
	// (e.g. "textContent", "href")
	Attribute string

	// Format is the image format for capture actions ("png" or "jpeg")
	Format string

	// FullPage captures beyond the viewport for capture actions
	FullPage bool

	// Label names the produced artifact for capture actions
	Label string

	// Duration is the pause length for wait actions
	Duration time.Duration

	// Timeout bounds this step; zero means the runner default
	Timeout time.Duration

	// ContinueOnFailure determines if execution continues when this step fails
	ContinueOnFailure bool
}

// ActionType represents the type of step action.
type ActionType string

const (
	ActionTypeNavigate ActionType = "navigate"
	ActionTypeClick    ActionType = "click"
	ActionTypeType     ActionType = "type"
	ActionTypeSubmit   ActionType = "submit"
	ActionTypeEvaluate ActionType = "evaluate"
	ActionTypeExtract  ActionType = "extract"
	ActionTypeCapture  ActionType = "capture"
	ActionTypeWait     ActionType = "wait"
)

// Validate checks the task for structural errors before execution.
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task has no name")
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("task %q has no steps", t.Name)
	}
	for i, step := range t.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("task %q step %d: %w", t.Name, i, err)
		}
	}
	return nil
}

func (s *Step) validate() error {
	switch s.Action {
	case ActionTypeNavigate:
		if s.URL == "" {
			return fmt.Errorf("navigate requires url")
		}
	case ActionTypeClick:
		if s.Selector == "" {
			return fmt.Errorf("click requires selector")
		}
	case ActionTypeType:
		if s.Selector == "" {
			return fmt.Errorf("type requires selector")
		}
	case ActionTypeSubmit:
		// acts on the focused element, nothing to check
	case ActionTypeEvaluate:
		if s.Script == "" {
			return fmt.Errorf("evaluate requires script")
		}
	case ActionTypeExtract:
		if s.Selector == "" {
			return fmt.Errorf("extract requires selector")
		}
	case ActionTypeCapture:
		switch s.Format {
		case "", "png", "jpeg":
		default:
			return fmt.Errorf("capture format %q not supported", s.Format)
		}
	case ActionTypeWait:
		if s.Duration <= 0 {
			return fmt.Errorf("wait requires a positive duration")
		}
	default:
		return fmt.Errorf("unknown action type %q", s.Action)
	}
	return nil
}
