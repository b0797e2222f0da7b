package sink

import (
	"context"
	"errors"

	"webpilot-go/domain/artifact"
)

// Fanout stores each artifact in every wrapped sink. All sinks are
// attempted even when one fails; the errors are joined.
type Fanout struct {
	sinks []artifact.Sink
}

// NewFanout creates a fan-out sink over the given sinks.
func NewFanout(sinks ...artifact.Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Store delivers the artifact to all sinks.
func (f *Fanout) Store(ctx context.Context, a *artifact.Artifact) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Store(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ artifact.Sink = (*Fanout)(nil)
