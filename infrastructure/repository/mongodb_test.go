package repository

import (
	"testing"
	"time"

	"webpilot-go/domain/artifact"
)

func TestDefaultMongoDBConfig(t *testing.T) {
	config := DefaultMongoDBConfig()

	if config == nil {
		t.Fatal("DefaultMongoDBConfig returned nil")
	}
	if config.URI != "mongodb://localhost:27017" {
		t.Errorf("URI = %v, want mongodb://localhost:27017", config.URI)
	}
	if config.Database != "webpilot" {
		t.Errorf("Database = %v, want webpilot", config.Database)
	}
	if config.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", config.ConnectTimeout)
	}
	if config.PingTimeout != 5*time.Second {
		t.Errorf("PingTimeout = %v, want 5s", config.PingTimeout)
	}
}

func TestArtifactDocument_Conversion(t *testing.T) {
	captured := time.Now().Truncate(time.Millisecond)
	doc := &artifactDocument{
		SessionID:  "s1",
		PageID:     "p1",
		Label:      "results",
		Format:     "png",
		Data:       []byte{1, 2, 3},
		URL:        "https://example.com",
		Size:       3,
		CapturedAt: captured,
	}

	a := documentToArtifact(doc)

	if a.SessionID != "s1" || a.PageID != "p1" {
		t.Errorf("unexpected identity %s/%s", a.SessionID, a.PageID)
	}
	if a.Label != "results" || a.Format != "png" {
		t.Errorf("unexpected label/format %s/%s", a.Label, a.Format)
	}
	if a.Size() != 3 {
		t.Errorf("Size() = %d, want 3", a.Size())
	}
	if !a.CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", a.CapturedAt, captured)
	}
}

func TestArtifactSinkContract(t *testing.T) {
	// Compile-time check lives in artifact_repo.go; this pins the
	// round-trip of fields the sink persists.
	a := &artifact.Artifact{
		SessionID: "s1", PageID: "p1", Label: "shot",
		Format: "jpeg", Data: []byte{9}, URL: "https://example.com",
		CapturedAt: time.Now(),
	}
	doc := artifactDocument{
		SessionID: a.SessionID, PageID: a.PageID, Label: a.Label,
		Format: a.Format, Data: a.Data, URL: a.URL,
		Size: a.Size(), CapturedAt: a.CapturedAt,
	}
	back := documentToArtifact(&doc)
	if back.Format != a.Format || back.Label != a.Label || len(back.Data) != len(a.Data) {
		t.Errorf("round-trip mismatch: %+v vs %+v", back, a)
	}
}
