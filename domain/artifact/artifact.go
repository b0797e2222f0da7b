// Package artifact defines captured page artifacts and where they go.
package artifact

import (
	"context"
	"time"
)

// Artifact is a captured rendering of a page at a point in time.
type Artifact struct {
	// SessionID identifies the originating browser session
	SessionID string

	// PageID identifies the originating page
	PageID string

	// Label is the caller-supplied name, used for file naming and lookup
	Label string

	// Format is the image format ("png" or "jpeg")
	Format string

	// Data is the encoded image
	Data []byte

	// URL is the page URL at capture time
	URL string

	// CapturedAt is when the capture completed
	CapturedAt time.Time
}

// Size returns the encoded byte length.
func (a *Artifact) Size() int {
	return len(a.Data)
}

// Sink receives captured artifacts. Implementations decide persistence:
// local files, object storage, a remote service.
type Sink interface {
	// Store persists one artifact. The artifact data must not be retained
	// past the call unless copied.
	Store(ctx context.Context, a *Artifact) error
}
