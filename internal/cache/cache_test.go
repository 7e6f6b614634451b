package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"freeway/internal/modelcache"
	"freeway/internal/providermodels"
)

func sampleSnapshot() *ModelSnapshot {
	return &ModelSnapshot{
		Version:   SnapshotVersion,
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Digest:    42,
		Catalog: modelcache.Snapshot{
			FreeModels: []modelcache.CachedModel{
				{ID: "meta-llama/llama-3.3-70b-instruct:free", ContextLength: 131072, PromptPrice: "0", CompletionPrice: "0", IsFree: true, Rank: 1},
			},
			SelectedFree: "meta-llama/llama-3.3-70b-instruct:free",
		},
		Providers: providermodels.Snapshot{},
	}
}

func TestLocalCache(t *testing.T) {
	t.Run("GetSetRoundTrip", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheFile := filepath.Join(tmpDir, "nested", "models.json")

		cache := NewLocalCache(cacheFile)
		ctx := context.Background()

		result, err := cache.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Fatalf("expected nil result for empty cache, got %v", result)
		}

		if err := cache.Set(ctx, sampleSnapshot()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(cacheFile); os.IsNotExist(err) {
			t.Fatal("cache file was not created")
		}

		got, err := cache.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected snapshot, got nil")
		}
		if got.Digest != 42 {
			t.Errorf("digest = %d, want 42", got.Digest)
		}
		if got.Catalog.SelectedFree != "meta-llama/llama-3.3-70b-instruct:free" {
			t.Errorf("selected free = %q", got.Catalog.SelectedFree)
		}
		if len(got.Catalog.FreeModels) != 1 || got.Catalog.FreeModels[0].ContextLength != 131072 {
			t.Errorf("unexpected free models: %+v", got.Catalog.FreeModels)
		}
	})

	t.Run("EmptyFilePath", func(t *testing.T) {
		cache := NewLocalCache("")
		ctx := context.Background()

		result, err := cache.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != nil {
			t.Fatal("expected nil result for empty path")
		}

		if err := cache.Set(ctx, &ModelSnapshot{Version: 1}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("CloseIsNoOp", func(t *testing.T) {
		cache := NewLocalCache(filepath.Join(t.TempDir(), "x.json"))
		if err := cache.Close(); err != nil {
			t.Fatalf("unexpected error on close: %v", err)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		cacheFile := filepath.Join(t.TempDir(), "models.json")
		if err := os.WriteFile(cacheFile, []byte("not valid json"), 0o644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}

		cache := NewLocalCache(cacheFile)
		if _, err := cache.Get(context.Background()); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})
}
