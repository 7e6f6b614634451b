package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBStore implements Store for MongoDB.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates the provider_benchmarks indexes if needed.
func NewMongoDBStore(ctx context.Context, database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection("provider_benchmarks")

	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := collection.Indexes().CreateMany(idxCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tested_at", Value: -1}}},
		{Keys: bson.D{{Key: "provider_name", Value: 1}, {Key: "tested_at", Value: -1}}},
	})
	if err != nil {
		slog.Warn("failed to create some MongoDB indexes for provider_benchmarks", "error", err)
	}

	return &MongoDBStore{collection: collection}, nil
}

// Insert writes records with an unordered InsertMany.
func (s *MongoDBStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, r := range records {
		r.TestedAt = r.TestedAt.UTC()
		docs[i] = r
	}
	if _, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to insert benchmarks: %w", err)
	}
	return nil
}

// ListSince returns records tested at or after since, oldest first.
func (s *MongoDBStore) ListSince(ctx context.Context, since time.Time) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "tested_at", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"tested_at": bson.M{"$gte": since.UTC()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmarks: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Record
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode benchmarks: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes records tested before cutoff.
func (s *MongoDBStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"tested_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete benchmarks: %w", err)
	}
	return res.DeletedCount, nil
}
