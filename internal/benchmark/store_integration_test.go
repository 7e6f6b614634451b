//go:build integration

package benchmark

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/internal/storage/storagetest"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	recent := Record{ID: uuid.NewString(), ProviderName: "groq", ModelID: "llama", ResponseTimeMs: 80, Success: true, TestedAt: now.Add(-time.Hour)}
	failed := Record{ID: uuid.NewString(), ProviderName: "cohere", ModelID: "command-r", Success: false, ErrorMessage: "Request timed out", TestedAt: now.Add(-10 * time.Minute)}
	old := Record{ID: uuid.NewString(), ProviderName: "groq", ModelID: "llama", Success: true, TestedAt: now.Add(-40 * 24 * time.Hour)}
	require.NoError(t, store.Insert(ctx, []Record{recent, failed, old}))

	records, err := store.ListSince(ctx, now.Add(-RefreshWindow))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, recent.ID, records[0].ID)
	assert.Equal(t, "Request timed out", records[1].ErrorMessage)
	assert.Zero(t, records[1].ErrorCode)

	deleted, err := store.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	c := NewCache(store)
	require.NoError(t, c.RefreshFromDatabase(ctx))
	assert.Equal(t, "groq", c.GetRankedProviders()[0])
}

func TestPostgreSQLStore(t *testing.T) {
	s := storagetest.PostgreSQL(t)
	store, err := NewStore(context.Background(), s)
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestMongoDBStore(t *testing.T) {
	s := storagetest.MongoDB(t)
	store, err := NewStore(context.Background(), s)
	require.NoError(t, err)
	exerciseStore(t, store)
}
