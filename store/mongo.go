package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/rag/document"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// MongoStore implements ResultStore using MongoDB
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ ResultStore = (*MongoStore)(nil)

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "batchsum",
		Collection: "summaries",
	}
}

type mongoRecord struct {
	ID        string            `bson:"_id"`
	RunID     string            `bson:"run_id"`
	Group     int               `bson:"group"`
	Position  int               `bson:"position"`
	Summary   document.Document `bson:"summary"`
	CreatedAt time.Time         `bson:"created_at"`
}

func recordID(runID string, group, position int) string {
	return fmt.Sprintf("%s/%d/%d", runID, group, position)
}

// NewMongoStore connects, pings and ensures the run index.
func NewMongoStore(ctx context.Context, config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "group", Value: 1}, {Key: "position", Value: 1}},
	})
	return err
}

// Save upserts all records of out with one bulk write.
func (s *MongoStore) Save(ctx context.Context, runID string, out summarizer.Output) error {
	if runID == "" {
		return fmt.Errorf("%w: run id cannot be empty", errorskg.ErrInvalidInput)
	}
	records := Records(runID, out, time.Now())
	if len(records) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		id := recordID(r.RunID, r.Group, r.Position)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(mongoRecord{
				ID:        id,
				RunID:     r.RunID,
				Group:     r.Group,
				Position:  r.Position,
				Summary:   r.Summary,
				CreatedAt: r.CreatedAt,
			}).
			SetUpsert(true))
	}
	if _, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to save summaries to MongoDB: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, runID string) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "group", Value: 1}, {Key: "position", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"run_id": runID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("run %q: %w", runID, errorskg.ErrNotFound)
	}

	records := make([]Record, len(docs))
	for i, d := range docs {
		records[i] = Record{
			RunID:     d.RunID,
			Group:     d.Group,
			Position:  d.Position,
			Summary:   d.Summary,
			CreatedAt: d.CreatedAt,
		}
	}
	return records, nil
}

// Delete removes every record of runID.
func (s *MongoStore) Delete(ctx context.Context, runID string) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{"run_id": runID})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
