// Package cache persists model catalog snapshots so a restarted gateway can
// serve routing decisions before its first upstream refresh.
// Supports both local file and Redis backends for multi-instance deployments.
package cache

import (
	"context"
	"time"

	"freeway/internal/modelcache"
	"freeway/internal/providermodels"
)

// SnapshotVersion is bumped when the stored layout changes incompatibly.
const SnapshotVersion = 1

// ModelSnapshot is the data stored in and read from the cache.
type ModelSnapshot struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	// Digest fingerprints the model content, ignoring timestamps.
	Digest    uint64                  `json:"digest"`
	Catalog   modelcache.Snapshot     `json:"catalog"`
	Providers providermodels.Snapshot `json:"providers"`
}

// Cache defines the interface for snapshot storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the stored snapshot.
	// Returns nil, nil if no snapshot exists yet.
	Get(ctx context.Context) (*ModelSnapshot, error)

	// Set stores the snapshot.
	Set(ctx context.Context, snapshot *ModelSnapshot) error

	// Close releases any resources held by the cache.
	Close() error
}
