package projects

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"freeway/internal/core"
)

const maxNameLength = 255

// CreateRequest is the body of a project creation.
type CreateRequest struct {
	Name               string         `json:"name"`
	RateLimitPerMinute *int           `json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// UpdateRequest carries optional changes. Nil fields are left untouched.
type UpdateRequest struct {
	Name               *string        `json:"name,omitempty"`
	IsActive           *bool          `json:"is_active,omitempty"`
	RateLimitPerMinute *int           `json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Service implements project administration on top of a Store and keeps
// the authentication cache in step with every mutation.
type Service struct {
	store Store
	keys  *KeyService
	cache *Cache
	now   func() time.Time
}

// NewService creates a Service. cache may be nil.
func NewService(store Store, keys *KeyService, cache *Cache) *Service {
	if keys == nil {
		keys = NewKeyService("")
	}
	return &Service{store: store, keys: keys, cache: cache, now: time.Now}
}

// Create validates req, stores a new project and returns it with its raw key.
// The raw key is not recoverable afterwards.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*ProjectWithKey, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	limit := DefaultRateLimitPerMinute
	if req.RateLimitPerMinute != nil {
		if err := validateRateLimit(*req.RateLimitPerMinute); err != nil {
			return nil, err
		}
		limit = *req.RateLimitPerMinute
	}

	rawKey, hash, prefix, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}

	now := s.now().UTC()
	p := Project{
		ID:                 uuid.NewString(),
		Name:               name,
		APIKeyHash:         hash,
		APIKeyPrefix:       prefix,
		CreatedAt:          now,
		UpdatedAt:          now,
		IsActive:           true,
		RateLimitPerMinute: limit,
		Metadata:           maps.Clone(req.Metadata),
	}
	if err := s.store.Create(ctx, &p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.invalidate()
	return &ProjectWithKey{Project: p, APIKey: rawKey}, nil
}

// List returns every project, newest first.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if list == nil {
		list = []Project{}
	}
	return list, nil
}

// Get returns one project or a 404 gateway error.
func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return p, nil
}

// Update applies the non-nil fields of req.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	if req.Name != nil {
		name, err := validateName(*req.Name)
		if err != nil {
			return nil, err
		}
		p.Name = name
	}
	if req.RateLimitPerMinute != nil {
		if err := validateRateLimit(*req.RateLimitPerMinute); err != nil {
			return nil, err
		}
		p.RateLimitPerMinute = *req.RateLimitPerMinute
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.Metadata != nil {
		p.Metadata = maps.Clone(req.Metadata)
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, p); err != nil {
		return nil, notFound(id, err)
	}
	s.invalidate()
	return p, nil
}

// Deactivate soft-deletes a project. Its key stops authenticating once the cache reloads.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	inactive := false
	_, err := s.Update(ctx, id, UpdateRequest{IsActive: &inactive})
	return err
}

// RotateKey issues a new key for the project and invalidates the old one.
func (s *Service) RotateKey(ctx context.Context, id string) (*RotatedKey, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	rawKey, hash, prefix, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}
	p.APIKeyHash = hash
	p.APIKeyPrefix = prefix
	p.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, p); err != nil {
		return nil, notFound(id, err)
	}
	s.invalidate()
	return &RotatedKey{ID: p.ID, APIKey: rawKey, APIKeyPrefix: prefix}, nil
}

// RefreshCache schedules a reload of the authentication cache.
func (s *Service) RefreshCache() {
	s.invalidate()
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.InvalidateCache()
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.NewInvalidRequestError("Project name is required", nil)
	}
	if len(name) > maxNameLength {
		return "", core.NewInvalidRequestError("Project name must not exceed 255 characters", nil)
	}
	return name, nil
}

func validateRateLimit(limit int) error {
	if limit <= 0 || limit > MaxRateLimitPerMinute {
		return core.NewInvalidRequestError(
			fmt.Sprintf("rate_limit_per_minute must be between 1 and %d", MaxRateLimitPerMinute), nil)
	}
	return nil
}

func notFound(id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return core.NewNotFoundError(fmt.Sprintf("Project %s not found", id))
	}
	return err
}
