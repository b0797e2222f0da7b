package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDefaultDriverConfig(t *testing.T) {
	cfg := DefaultDriverConfig()

	if !cfg.Headless {
		t.Error("expected headless by default")
	}
	if cfg.WindowWidth != 1280 || cfg.WindowHeight != 800 {
		t.Errorf("expected 1280x800 window, got %dx%d", cfg.WindowWidth, cfg.WindowHeight)
	}
	if !cfg.HideAutomation {
		t.Error("expected automation hiding by default")
	}
	if cfg.ActionTimeout != 30*time.Second {
		t.Errorf("expected 30s action timeout, got %v", cfg.ActionTimeout)
	}
	if cfg.EventBuffer <= 0 {
		t.Errorf("expected positive event buffer, got %d", cfg.EventBuffer)
	}
}

func TestDefaultCaptureOptions(t *testing.T) {
	opts := DefaultCaptureOptions()
	if opts.Format != "png" {
		t.Errorf("expected png, got %q", opts.Format)
	}
	if opts.FullPage {
		t.Error("expected viewport capture by default")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"stale node", errors.New("Could not find node with given id"), ErrStaleElement},
		{"stale context", errors.New("Cannot find context with specified id"), ErrStaleElement},
		{"stale object", errors.New("cannot find object: xyz"), ErrStaleElement},
		{"closed target", errors.New("No target with given id found"), ErrTargetClosed},
		{"crashed", errors.New("inspector: target crashed"), ErrTargetClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.in)
			if tt.in == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyError_UnmatchedIsTyped(t *testing.T) {
	// Faults that match no sentinel must still come back typed, never raw.
	for _, cause := range []error{
		errors.New("some unknown cdp message"),
		context.DeadlineExceeded,
	} {
		got := classifyError(cause)
		var pe *ProtocolError
		if !errors.As(got, &pe) {
			t.Errorf("classifyError(%v) = %v, want ProtocolError", cause, got)
			continue
		}
		if !errors.Is(got, cause) {
			t.Errorf("ProtocolError should unwrap to %v, got %v", cause, got)
		}
	}
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{Backend: "chromedp", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected ConnectionError to unwrap its cause")
	}
	var ce *ConnectionError
	if !errors.As(fmt.Errorf("start: %w", err), &ce) {
		t.Error("expected errors.As to find ConnectionError through wrapping")
	}
}

func TestScriptError(t *testing.T) {
	err := &ScriptError{Detail: "ReferenceError: x is not defined"}
	if err.Error() == "" {
		t.Error("expected non-empty message")
	}

	wrapped := fmt.Errorf("evaluate: %w", err)
	var se *ScriptError
	if !errors.As(wrapped, &se) {
		t.Fatal("expected errors.As to find ScriptError")
	}
	if se.Detail != "ReferenceError: x is not defined" {
		t.Errorf("unexpected detail %q", se.Detail)
	}
}

func TestNodeIDFromRef(t *testing.T) {
	if _, err := nodeIDFromRef(ElementRef{ID: "42"}); err != nil {
		t.Errorf("expected numeric ref to parse, got %v", err)
	}
	if _, err := nodeIDFromRef(ElementRef{ID: "bogus"}); !errors.Is(err, ErrStaleElement) {
		t.Errorf("expected stale error for bad ref, got %v", err)
	}
}

func TestDrivers_NotRunning(t *testing.T) {
	cd := NewChromeDPDriver(nil)
	if cd.IsRunning() {
		t.Error("chromedp driver should not be running before Start")
	}
	if _, err := cd.CreateTarget(context.Background(), "about:blank"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
	if err := cd.Stop(); err != nil {
		t.Errorf("Stop before Start should be a no-op, got %v", err)
	}

	rd := NewRodDriver(nil)
	if rd.IsRunning() {
		t.Error("rod driver should not be running before Start")
	}
	if _, err := rd.CreateTarget(context.Background(), "about:blank"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
	if err := rd.Stop(); err != nil {
		t.Errorf("Stop before Start should be a no-op, got %v", err)
	}
}

func TestDrivers_Capabilities(t *testing.T) {
	if !NewChromeDPDriver(nil).Capabilities().NativeKeyDispatch {
		t.Error("chromedp backend should dispatch native keys")
	}
	if !NewRodDriver(nil).Capabilities().NativeKeyDispatch {
		t.Error("rod backend should dispatch native keys")
	}
}
