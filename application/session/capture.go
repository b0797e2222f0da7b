package session

import (
	"context"
	"time"

	"webpilot-go/core/event"
	"webpilot-go/domain/artifact"
	"webpilot-go/infrastructure/browser"
)

// CaptureScreenshot captures the page into an artifact. The page must be
// Ready; a capture mid-navigation would record an arbitrary intermediate
// frame. Failed captures are not retried.
func (p *Page) CaptureScreenshot(ctx context.Context, label string, opts browser.CaptureOptions) (*artifact.Artifact, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.requireReady(); err != nil {
		return nil, err
	}
	if opts.Format == "" {
		opts = browser.DefaultCaptureOptions()
	}

	data, err := p.driver.CaptureScreenshot(ctx, p.id, opts)
	if err != nil {
		cerr := &CaptureError{Err: err}
		p.failOp("capture", cerr)
		return nil, cerr
	}

	a := &artifact.Artifact{
		SessionID:  p.session.id,
		PageID:     p.id,
		Label:      label,
		Format:     opts.Format,
		Data:       data,
		URL:        p.URL(),
		CapturedAt: time.Now(),
	}

	p.session.eventBus.Publish(event.NewArtifactCaptured(p.session.id, p.id, a.Format, a.Size()))
	p.logger.Info("Screenshot captured", "label", label, "format", a.Format, "bytes", a.Size())
	return a, nil
}
