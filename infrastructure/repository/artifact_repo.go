package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"webpilot-go/domain/artifact"
)

// artifactDocument is the MongoDB document structure for artifacts.
type artifactDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SessionID  string             `bson:"session_id"`
	PageID     string             `bson:"page_id"`
	Label      string             `bson:"label"`
	Format     string             `bson:"format"`
	Data       []byte             `bson:"data"`
	URL        string             `bson:"url"`
	Size       int                `bson:"size"`
	CapturedAt time.Time          `bson:"captured_at"`
}

// MongoArtifactRepository persists captured artifacts in MongoDB. It
// implements artifact.Sink.
type MongoArtifactRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoArtifactRepository creates a new MongoDB-based artifact repository.
func NewMongoArtifactRepository(db *MongoDB, logger *slog.Logger) *MongoArtifactRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoArtifactRepository{
		collection: db.Collection("artifact"),
		logger:     logger,
	}
}

// Store persists one artifact.
func (r *MongoArtifactRepository) Store(ctx context.Context, a *artifact.Artifact) error {
	doc := artifactDocument{
		SessionID:  a.SessionID,
		PageID:     a.PageID,
		Label:      a.Label,
		Format:     a.Format,
		Data:       a.Data,
		URL:        a.URL,
		Size:       a.Size(),
		CapturedAt: a.CapturedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	r.logger.Debug("Artifact stored", "label", a.Label, "bytes", a.Size())
	return nil
}

// FindBySession returns all artifacts captured in a session, newest first.
func (r *MongoArtifactRepository) FindBySession(ctx context.Context, sessionID string) ([]*artifact.Artifact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "captured_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find artifacts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []artifactDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode artifacts: %w", err)
	}

	artifacts := make([]*artifact.Artifact, len(docs))
	for i, doc := range docs {
		artifacts[i] = documentToArtifact(&doc)
	}
	return artifacts, nil
}

// FindByLabel returns the most recent artifact with the given label.
// Returns nil when none exists.
func (r *MongoArtifactRepository) FindByLabel(ctx context.Context, label string) (*artifact.Artifact, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "captured_at", Value: -1}})
	var doc artifactDocument
	if err := r.collection.FindOne(ctx, bson.M{"label": label}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find artifact: %w", err)
	}
	return documentToArtifact(&doc), nil
}

// DeleteOlderThan removes artifacts captured before the cutoff, returning
// how many were deleted.
func (r *MongoArtifactRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"captured_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return res.DeletedCount, nil
}

func documentToArtifact(doc *artifactDocument) *artifact.Artifact {
	return &artifact.Artifact{
		SessionID:  doc.SessionID,
		PageID:     doc.PageID,
		Label:      doc.Label,
		Format:     doc.Format,
		Data:       doc.Data,
		URL:        doc.URL,
		CapturedAt: doc.CapturedAt,
	}
}

// Ensure the repository satisfies the sink contract.
var _ artifact.Sink = (*MongoArtifactRepository)(nil)
