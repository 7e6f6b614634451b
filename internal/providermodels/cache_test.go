package providermodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/internal/core"
)

func model(id string, available bool) core.ProviderModelInfo {
	return core.ProviderModelInfo{ID: id, Name: id, IsAvailable: available}
}

func TestUpdateModels_Diff(t *testing.T) {
	c := New()

	first := c.UpdateModels("groq", []core.ProviderModelInfo{model("a", true), model("B", true)})
	assert.Len(t, first.Added, 2)
	assert.Empty(t, first.Removed)
	assert.Equal(t, 2, first.TotalCount)
	assert.True(t, first.HasChanges())

	same := c.UpdateModels("groq", []core.ProviderModelInfo{model("A", true), model("b", true)})
	assert.False(t, same.HasChanges(), "case-only differences are not changes")

	next := c.UpdateModels("groq", []core.ProviderModelInfo{model("a", true), model("c", true)})
	require.Len(t, next.Added, 1)
	assert.Equal(t, "c", next.Added[0].ID)
	require.Len(t, next.Removed, 1)
	assert.Equal(t, "b", next.Removed[0].ID)
}

func TestUpdateModels_StampsProviderName(t *testing.T) {
	c := New()
	in := []core.ProviderModelInfo{model("x", true)}
	c.UpdateModels("mistral", in)

	assert.Equal(t, "mistral", c.GetModels("mistral")[0].ProviderName)
	assert.Empty(t, in[0].ProviderName, "input slice must not be mutated")

	_, ok := c.GetLastValidated("mistral")
	assert.True(t, ok)
	_, ok = c.GetLastValidated("cohere")
	assert.False(t, ok)
}

func TestIsValidModel(t *testing.T) {
	c := New()
	c.UpdateModels("groq", []core.ProviderModelInfo{model("llama-3.3-70b", true), model("old", false)})

	tests := []struct {
		name     string
		provider string
		model    string
		want     bool
	}{
		{"empty provider", "", "x", false},
		{"empty model", "groq", "", false},
		{"uncached provider passes through", "cohere", "anything", true},
		{"case-insensitive match", "groq", "LLAMA-3.3-70B", true},
		{"unavailable model", "groq", "old", false},
		{"unknown model", "groq", "nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsValidModel(tt.provider, tt.model))
		})
	}
}

func TestFindProvidersForModel(t *testing.T) {
	c := New()
	c.UpdateModels("mistral", []core.ProviderModelInfo{model("shared", true)})
	c.UpdateModels("groq", []core.ProviderModelInfo{model("Shared", true), model("hidden", false)})

	assert.Equal(t, []string{"groq", "mistral"}, c.FindProvidersForModel("SHARED"))
	assert.Empty(t, c.FindProvidersForModel("hidden"))
	assert.Empty(t, c.FindProvidersForModel(""))

	// reverse index drops the provider once the model disappears
	c.UpdateModels("groq", []core.ProviderModelInfo{model("other", true)})
	assert.Equal(t, []string{"mistral"}, c.FindProvidersForModel("shared"))

	// model becoming unavailable is removed from the index
	c.UpdateModels("mistral", []core.ProviderModelInfo{model("shared", false)})
	assert.Empty(t, c.FindProvidersForModel("shared"))
}

func TestGetCacheSummary(t *testing.T) {
	c := New()
	c.UpdateModels("groq", []core.ProviderModelInfo{model("a", true), model("b", true)})
	c.UpdateModels("cohere", []core.ProviderModelInfo{model("c", true)})

	s := c.GetCacheSummary()
	assert.Equal(t, 2, s.ProviderCount)
	assert.Equal(t, 3, s.TotalModelCount)
	assert.Equal(t, map[string]int{"groq": 2, "cohere": 1}, s.ModelCountByProvider)
	require.NotNil(t, s.LastValidatedByProvider["groq"])
}

func TestReadersReturnCopies(t *testing.T) {
	c := New()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.UpdateModels("groq", []core.ProviderModelInfo{{ID: "a", IsAvailable: true, CreatedAt: &created}})

	all := c.GetAllProviderModels()
	all["groq"][0].ID = "mutated"
	*all["groq"][0].CreatedAt = time.Time{}

	got := c.GetModels("groq")[0]
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, created, *got.CreatedAt)
}

func TestSnapshotRestore(t *testing.T) {
	c := New()
	c.UpdateModels("groq", []core.ProviderModelInfo{model("a", true)})
	snap := c.Snapshot()

	restored := New()
	restored.Restore(snap)
	assert.Equal(t, c.GetAllProviderModels(), restored.GetAllProviderModels())
	assert.Equal(t, []string{"groq"}, restored.FindProvidersForModel("A"))
	assert.True(t, restored.HasProviders())
	assert.False(t, New().HasProviders())
}
