package benchmark

import (
	"context"
	"fmt"
	"time"

	"freeway/internal/storage"
)

// Record is one stored benchmark probe.
type Record struct {
	ID             string    `json:"id" bson:"_id"`
	ProviderName   string    `json:"provider_name" bson:"provider_name"`
	ModelID        string    `json:"model_id" bson:"model_id"`
	ResponseTimeMs int       `json:"response_time_ms" bson:"response_time_ms"`
	Success        bool      `json:"success" bson:"success"`
	ErrorMessage   string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
	ErrorCode      int       `json:"error_code,omitempty" bson:"error_code,omitempty"`
	TestedAt       time.Time `json:"tested_at" bson:"tested_at"`
}

// Store persists benchmark records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Insert writes records. An empty slice is a no-op.
	Insert(ctx context.Context, records []Record) error

	// ListSince returns records tested at or after since.
	ListSince(ctx context.Context, since time.Time) ([]Record, error)

	// DeleteOlderThan removes records tested before cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewStore creates the Store for the configured storage backend.
func NewStore(ctx context.Context, s storage.Storage) (Store, error) {
	switch s.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(ctx, s.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, s.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBStore(ctx, s.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", s.Type())
	}
}
