package projects

import (
	"context"
	"errors"
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

// NewMongoDBStore creates the projects indexes if needed.
func NewMongoDBStore(ctx context.Context, database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	collection := database.Collection("projects")

	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateOne(idxCtx, mongo.IndexModel{Keys: bson.D{{Key: "is_active", Value: 1}}}); err != nil {
		slog.Warn("failed to create MongoDB index for projects", "error", err)
	}
	return &MongoDBStore{collection: collection}, nil
}

// Create inserts p.
func (s *MongoDBStore) Create(ctx context.Context, p *Project) error {
	doc := *p
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get returns one project.
func (s *MongoDBStore) Get(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// List returns every project, newest first.
func (s *MongoDBStore) List(ctx context.Context) ([]Project, error) {
	return s.find(ctx, bson.M{})
}

// ListActive returns active projects.
func (s *MongoDBStore) ListActive(ctx context.Context) ([]Project, error) {
	return s.find(ctx, bson.M{"is_active": true})
}

// Update overwrites the mutable fields of p.
func (s *MongoDBStore) Update(ctx context.Context, p *Project) error {
	set := bson.M{
		"name":                  p.Name,
		"api_key_hash":          p.APIKeyHash,
		"api_key_prefix":        p.APIKeyPrefix,
		"is_active":             p.IsActive,
		"rate_limit_per_minute": p.RateLimitPerMinute,
		"updated_at":            p.UpdatedAt.UTC(),
		"metadata":              p.Metadata,
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) find(ctx context.Context, filter bson.M) ([]Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Project
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return out, nil
}
