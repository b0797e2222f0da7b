// Package sink provides artifact sink implementations.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"webpilot-go/domain/artifact"
)

// FileSink writes artifacts to a directory, one file per artifact.
type FileSink struct {
	dir    string
	logger *slog.Logger
}

// NewFileSink creates a file sink writing into dir.
func NewFileSink(dir string, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{dir: dir, logger: logger}
}

// Store writes the artifact to disk. Filenames combine the label and the
// capture timestamp so repeated captures never clobber each other.
func (s *FileSink) Store(ctx context.Context, a *artifact.Artifact) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	ext := a.Format
	if ext == "" {
		ext = "png"
	}
	label := a.Label
	if label == "" {
		label = "capture"
	}
	capturedAt := a.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	filename := filepath.Join(s.dir, fmt.Sprintf("%s-%d.%s", label, capturedAt.UnixMilli(), ext))
	if err := os.WriteFile(filename, a.Data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	s.logger.Debug("Artifact saved", "filename", filename, "bytes", a.Size())
	return nil
}

var _ artifact.Sink = (*FileSink)(nil)
