// Package projects manages API-key scoped projects: persistence, key
// generation and the in-memory cache used to authenticate requests.
package projects

import (
	"errors"
	"time"
)

// DefaultRateLimitPerMinute applies to projects created without a limit.
const DefaultRateLimitPerMinute = 60

// MaxRateLimitPerMinute is the largest per-project limit accepted.
const MaxRateLimitPerMinute = 10000

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("project not found")

// Project is a stored project. The key hash never leaves the server.
type Project struct {
	ID                 string         `json:"id" bson:"_id"`
	Name               string         `json:"name" bson:"name"`
	APIKeyHash         string         `json:"-" bson:"api_key_hash"`
	APIKeyPrefix       string         `json:"api_key_prefix" bson:"api_key_prefix"`
	CreatedAt          time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" bson:"updated_at"`
	IsActive           bool           `json:"is_active" bson:"is_active"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute" bson:"rate_limit_per_minute"`
	Metadata           map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// ProjectInfo is what the authenticator learns about a caller.
type ProjectInfo struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	IsActive           bool   `json:"is_active"`
}

// ProjectWithKey is returned once, on creation. APIKey is the raw key.
type ProjectWithKey struct {
	Project
	APIKey string `json:"api_key"`
}

// RotatedKey is the result of a key rotation.
type RotatedKey struct {
	ID           string `json:"id"`
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}
