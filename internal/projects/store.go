package projects

import (
	"context"
	"fmt"

	"freeway/internal/storage"
)

// Store persists projects.
// Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, p *Project) error
	// Get returns ErrNotFound when the project does not exist.
	Get(ctx context.Context, id string) (*Project, error)
	// List returns every project, newest first.
	List(ctx context.Context) ([]Project, error)
	// ListActive returns active projects only.
	ListActive(ctx context.Context) ([]Project, error)
	// Update overwrites the mutable fields. Returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, p *Project) error
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
