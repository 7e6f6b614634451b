package benchmark

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/internal/storage"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLite(storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "bench.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	store, err := NewStore(context.Background(), s)
	require.NoError(t, err)
	return store.(*SQLiteStore)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Insert(ctx, nil))
	require.NoError(t, store.Insert(ctx, []Record{
		{ID: "a", ProviderName: "groq", ModelID: "llama", ResponseTimeMs: 120, Success: true, TestedAt: now.Add(-time.Hour)},
		{ID: "b", ProviderName: "gemini", ModelID: "flash", Success: false, ErrorMessage: "Gemini API error: 503 Service Unavailable", ErrorCode: 503, TestedAt: now.Add(-30 * time.Minute)},
		{ID: "c", ProviderName: "groq", ModelID: "llama", Success: true, TestedAt: now.Add(-72 * time.Hour)},
	}))

	records, err := store.ListSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.True(t, records[0].Success)
	assert.Equal(t, 120, records[0].ResponseTimeMs)
	assert.True(t, records[0].TestedAt.Equal(now.Add(-time.Hour)))
	assert.Equal(t, 503, records[1].ErrorCode)
	assert.Equal(t, "Gemini API error: 503 Service Unavailable", records[1].ErrorMessage)

	deleted, err := store.DeleteOlderThan(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSQLiteStore_InsertIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	r := Record{ID: "dup", ProviderName: "groq", ModelID: "m", Success: true, TestedAt: time.Now()}

	require.NoError(t, store.Insert(ctx, []Record{r}))
	require.NoError(t, store.Insert(ctx, []Record{r}))

	records, err := store.ListSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestNewSQLiteStore_NilDB(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), nil)
	assert.Error(t, err)
}
