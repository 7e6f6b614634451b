package server

import (
	"fmt"
	"log/slog"
	"strings"

	"freeway/internal/core"
	"freeway/internal/modelcache"
	"freeway/internal/usage"
)

// Model aliases accepted in the request's model field.
const (
	modelAliasFree = "free"
	modelAliasPaid = "paid"
)

// paidProvider is the aggregator that serves "paid" and catalog models.
const paidProvider = "openrouter"

// resolution says how a request's model is served.
type resolution struct {
	// Fallback routes the request through the ranked free-provider orchestrator
	Fallback bool
	// Provider is the adapter to call when Fallback is false
	Provider string
	ModelID  string
	// ModelType is one of the usage.ModelType* values
	ModelType string
	// Model is the catalog entry used for pricing, when known
	Model *modelcache.CachedModel
}

// resolveModel maps the requested model to a provider. The first rule that
// matches wins:
//
//	"free"                          -> orchestrator
//	"paid"                          -> selected paid model on openrouter
//	catalog model                   -> openrouter, typed by the catalog tier
//	model hosted by a provider      -> that provider directly
//	"vendor/model" on openrouter    -> openrouter, paid
//	anything else                   -> 400 once provider catalogs are loaded,
//	                                   passed through to openrouter before that
func (h *Handler) resolveModel(requested string) (resolution, error) {
	switch {
	case strings.EqualFold(requested, modelAliasFree):
		return resolution{Fallback: true, ModelType: usage.ModelTypeFree}, nil

	case strings.EqualFold(requested, modelAliasPaid):
		m, ok := h.models.GetSelectedPaidModel()
		if !ok {
			return resolution{}, core.NewUnavailableError(fmt.Sprintf("Model '%s' not available", requested))
		}
		return resolution{Provider: paidProvider, ModelID: m.ID, ModelType: usage.ModelTypePaid, Model: &m}, nil
	}

	if m, ok := h.models.GetModelByID(requested); ok {
		modelType := usage.ModelTypePaid
		if m.IsFree {
			modelType = usage.ModelTypeFree
		}
		return resolution{Provider: paidProvider, ModelID: m.ID, ModelType: modelType, Model: &m}, nil
	}

	if h.catalogs != nil {
		if hosts := h.catalogs.FindProvidersForModel(requested); len(hosts) > 0 {
			slog.Debug("model found on providers", "model", requested, "providers", hosts)
			return resolution{Provider: h.pickHost(hosts), ModelID: requested, ModelType: usage.ModelTypeSpecific}, nil
		}

		if strings.Contains(requested, "/") && h.catalogs.IsValidModel(paidProvider, requested) {
			return resolution{Provider: paidProvider, ModelID: requested, ModelType: usage.ModelTypePaid}, nil
		}

		if h.catalogs.GetCacheSummary().TotalModelCount > 0 {
			slog.Warn("model not found in any provider cache", "model", requested)
			return resolution{}, core.NewInvalidRequestError(fmt.Sprintf(
				"Model '%s' is not available. Use GET /v1/models to see available models.", requested), nil)
		}
	}

	slog.Debug("provider model cache not yet populated, passing model through", "model", requested)
	return resolution{Provider: paidProvider, ModelID: requested, ModelType: usage.ModelTypeUnknown}, nil
}

// pickHost returns the first enabled hosting provider, or the aggregator when
// none of them can be called.
func (h *Handler) pickHost(hosts []string) string {
	for _, name := range hosts {
		if p, ok := h.providers.Get(name); ok && p.IsEnabled() {
			return name
		}
	}
	return paidProvider
}
