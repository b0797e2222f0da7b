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

	"webpilot-go/application/session"
)

// runDocument is the MongoDB document structure for task runs.
type runDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	TaskName   string             `bson:"task_name"`
	Reason     string             `bson:"reason"`
	Error      string             `bson:"error,omitempty"`
	Steps      []runStepDocument  `bson:"steps"`
	RecordedAt time.Time          `bson:"recorded_at"`
}

type runStepDocument struct {
	Index     int      `bson:"index"`
	Action    string   `bson:"action"`
	Error     string   `bson:"error,omitempty"`
	Extracted []string `bson:"extracted,omitempty"`
}

// MongoRunRepository persists task run outcomes in MongoDB. It implements
// application.RunSink.
type MongoRunRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoRunRepository creates a new MongoDB-based run repository.
func NewMongoRunRepository(db *MongoDB, logger *slog.Logger) *MongoRunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoRunRepository{
		collection: db.Collection("task_run"),
		logger:     logger,
	}
}

// Record persists one task run result.
func (r *MongoRunRepository) Record(ctx context.Context, result *session.Result) error {
	doc := runDocument{
		TaskName:   result.TaskName,
		Reason:     result.Reason.String(),
		Steps:      make([]runStepDocument, len(result.Steps)),
		RecordedAt: time.Now(),
	}
	if result.Err != nil {
		doc.Error = result.Err.Error()
	}
	for i, step := range result.Steps {
		sd := runStepDocument{
			Index:     step.Index,
			Action:    string(step.Action),
			Extracted: step.Extracted,
		}
		if step.Err != nil {
			sd.Error = step.Err.Error()
		}
		doc.Steps[i] = sd
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	r.logger.Debug("Task run recorded", "task", result.TaskName, "reason", doc.Reason)
	return nil
}

// ListRecent returns the most recent run documents for a task, newest
// first.
func (r *MongoRunRepository) ListRecent(ctx context.Context, taskName string, limit int64) ([]bson.M, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"task_name": taskName}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find runs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode runs: %w", err)
	}
	return docs, nil
}
