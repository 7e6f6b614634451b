// Package providers holds the provider registry and the shared plumbing used by
// the vendor adapters in its subpackages.
package providers

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Options carries the settings every adapter constructor receives.
type Options struct {
	// HTTPClient overrides the shared client (tests use httptest clients)
	HTTPClient *http.Client
	// BaseURL overrides the vendor's default API base URL
	BaseURL string
	// CompletionTimeout bounds a single chat completion attempt
	CompletionTimeout time.Duration
	// RequestTimeout bounds model listing calls
	RequestTimeout time.Duration
}

// Registration describes how to build one vendor adapter.
type Registration struct {
	Type string
	New  func(apiKey string, opts Options) Adapter
}

var (
	registrationsMu sync.RWMutex
	registrations   = make(map[string]Registration)
)

// Register makes a vendor adapter constructible by name.
// Vendor packages call it from init().
func Register(r Registration) {
	registrationsMu.Lock()
	defer registrationsMu.Unlock()
	registrations[r.Type] = r
}

// Create instantiates the adapter registered under providerType.
func Create(providerType, apiKey string, opts Options) (Adapter, error) {
	registrationsMu.RLock()
	r, ok := registrations[providerType]
	registrationsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return r.New(apiKey, opts), nil
}

// ListRegistered returns the registered provider types, sorted.
func ListRegistered() []string {
	registrationsMu.RLock()
	defer registrationsMu.RUnlock()

	types := make([]string, 0, len(registrations))
	for t := range registrations {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
