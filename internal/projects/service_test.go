package projects

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/internal/core"
)

func newTestService(t *testing.T) (*Service, *Cache, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	keys := testKeys()
	cache := NewCache(store, keys)
	svc := NewService(store, keys, cache)
	return svc, cache, store
}

func gatewayStatus(t *testing.T, err error) int {
	t.Helper()
	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr), "expected gateway error, got %v", err)
	return gwErr.HTTPStatusCode()
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestService_CreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     CreateRequest
		message string
	}{
		{"empty name", CreateRequest{Name: "  "}, "Project name is required"},
		{"long name", CreateRequest{Name: strings.Repeat("a", 256)}, "Project name must not exceed 255 characters"},
		{"zero limit", CreateRequest{Name: "ok", RateLimitPerMinute: intPtr(0)}, "rate_limit_per_minute must be between 1 and 10000"},
		{"huge limit", CreateRequest{Name: "ok", RateLimitPerMinute: intPtr(10001)}, "rate_limit_per_minute must be between 1 and 10000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, gatewayStatus(t, err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestService_CreateAuthenticates(t *testing.T) {
	svc, cache, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{Name: " demo ", Metadata: map[string]any{"team": "core"}})
	require.NoError(t, err)
	cache.Wait()

	assert.Equal(t, "demo", created.Name)
	assert.Equal(t, DefaultRateLimitPerMinute, created.RateLimitPerMinute)
	assert.True(t, created.IsActive)
	assert.Equal(t, created.APIKey[:8], created.APIKeyPrefix)

	info, ok := cache.ValidateAPIKey(created.APIKey)
	require.True(t, ok)
	assert.Equal(t, created.ID, info.ID)
	assert.Equal(t, "demo", info.Name)
	assert.Equal(t, 1, cache.Count())
}

func TestService_UpdateAndDeactivate(t *testing.T) {
	svc, cache, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateRequest{Name: "demo"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, UpdateRequest{
		Name:               strPtr("renamed"),
		RateLimitPerMinute: intPtr(120),
		Metadata:           map[string]any{"env": "prod"},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 120, updated.RateLimitPerMinute)
	assert.Equal(t, "prod", updated.Metadata["env"])
	assert.Equal(t, created.APIKeyHash, updated.APIKeyHash)

	_, err = svc.Update(ctx, created.ID, UpdateRequest{RateLimitPerMinute: intPtr(-1)})
	assert.Equal(t, http.StatusBadRequest, gatewayStatus(t, err))

	require.NoError(t, svc.Deactivate(ctx, created.ID))
	cache.Wait()

	_, ok := cache.ValidateAPIKey(created.APIKey)
	assert.False(t, ok)
	assert.Zero(t, cache.Count())

	p, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	reactivated, err := svc.Update(ctx, created.ID, UpdateRequest{IsActive: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
}

func TestService_RotateKey(t *testing.T) {
	svc, cache, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateRequest{Name: "demo"})
	require.NoError(t, err)

	rotated, err := svc.RotateKey(ctx, created.ID)
	require.NoError(t, err)
	cache.Wait()

	assert.Equal(t, created.ID, rotated.ID)
	assert.NotEqual(t, created.APIKey, rotated.APIKey)

	_, ok := cache.ValidateAPIKey(created.APIKey)
	assert.False(t, ok, "old key must stop working")
	info, ok := cache.ValidateAPIKey(rotated.APIKey)
	require.True(t, ok)
	assert.Equal(t, created.ID, info.ID)
}

func TestService_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, gatewayStatus(t, err))
	_, err = svc.RotateKey(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, gatewayStatus(t, err))
	err = svc.Deactivate(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, gatewayStatus(t, err))
}

func TestService_ListNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := svc.Create(ctx, CreateRequest{Name: name})
		require.NoError(t, err)
	}

	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Name)
	assert.Equal(t, "first", list[2].Name)
	svc.cache.Wait()
}
