package modelcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/internal/core"
)

type fakeSource struct {
	models []core.CatalogModel
	err    error
	calls  int
}

func (f *fakeSource) FetchCatalog(context.Context) ([]core.CatalogModel, error) {
	f.calls++
	return f.models, f.err
}

func catalog() []core.CatalogModel {
	return []core.CatalogModel{
		{ID: "meta/llama-small:free", ContextLength: 8192, PromptPrice: "0.1", CompletionPrice: "0.1"},
		{ID: "google/gemma:free", ContextLength: 131072, PromptPrice: "0", CompletionPrice: "0"},
		{ID: "vendor/zero", ContextLength: 32000, PromptPrice: "0", CompletionPrice: "0"},
		{ID: "openai/gpt-4o", ContextLength: 128000, PromptPrice: "0.0000025", CompletionPrice: "0.00001"},
		{ID: "openai/gpt-4o-mini", ContextLength: 128000, PromptPrice: "0.00000015", CompletionPrice: "0.0000006"},
		{ID: "openrouter/auto", ContextLength: 2000000, PromptPrice: "-1", CompletionPrice: "-1"},
		{ID: "some/router-model", ContextLength: 32000, PromptPrice: "0.001", CompletionPrice: "0.001"},
		{ID: "tiny/ctx", ContextLength: 4096, PromptPrice: "0.001", CompletionPrice: "0.001"},
		{ID: "weird/price", ContextLength: 32000, PromptPrice: "n/a", CompletionPrice: "0.001"},
	}
}

func ids(models []CachedModel) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.ID
	}
	return out
}

func TestPartition(t *testing.T) {
	free, paid := Partition(catalog())

	assert.Equal(t, []string{"google/gemma:free", "vendor/zero", "meta/llama-small:free"}, ids(free))
	assert.Equal(t, []string{"openai/gpt-4o-mini", "openai/gpt-4o"}, ids(paid))
	for i, m := range free {
		assert.Equal(t, i+1, m.Rank)
		assert.True(t, m.IsFree)
	}
	for i, m := range paid {
		assert.Equal(t, i+1, m.Rank)
		assert.False(t, m.IsFree)
	}
}

func TestIsFreeModel(t *testing.T) {
	tests := []struct {
		name  string
		model core.CatalogModel
		want  bool
	}{
		{"free suffix", core.CatalogModel{ID: "a/b:free", PromptPrice: "1", CompletionPrice: "1"}, true},
		{"free suffix upper", core.CatalogModel{ID: "a/b:FREE"}, true},
		{"zero prices", core.CatalogModel{ID: "a/b", PromptPrice: "0", CompletionPrice: "0"}, true},
		{"decimal zero is not literal zero", core.CatalogModel{ID: "a/b", PromptPrice: "0.0", CompletionPrice: "0"}, false},
		{"paid", core.CatalogModel{ID: "a/b", PromptPrice: "0.1", CompletionPrice: "0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFreeModel(tt.model))
		})
	}
}

func TestIsPaidCandidate(t *testing.T) {
	tests := []struct {
		name  string
		model core.CatalogModel
		want  bool
	}{
		{"priced", core.CatalogModel{ID: "openai/gpt-4o", ContextLength: 128000, PromptPrice: "0.001", CompletionPrice: "0.002"}, true},
		{"auto suffix", core.CatalogModel{ID: "openrouter/auto", ContextLength: 128000, PromptPrice: "0.001", CompletionPrice: "0.002"}, false},
		{"auto inside id", core.CatalogModel{ID: "x/auto-beta", ContextLength: 128000, PromptPrice: "0.001", CompletionPrice: "0.002"}, false},
		{"auto mixed case", core.CatalogModel{ID: "X/AUTO-v2", ContextLength: 128000, PromptPrice: "0.001", CompletionPrice: "0.002"}, false},
		{"router", core.CatalogModel{ID: "some/Router-1", ContextLength: 128000, PromptPrice: "0.001", CompletionPrice: "0.002"}, false},
		{"short context", core.CatalogModel{ID: "tiny/ctx", ContextLength: MinPaidContextLength - 1, PromptPrice: "0.001", CompletionPrice: "0.002"}, false},
		{"unparsable price", core.CatalogModel{ID: "weird/price", ContextLength: 32000, PromptPrice: "n/a", CompletionPrice: "0.002"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPaidCandidate(tt.model))
		})
	}
}

func TestRefreshModels_AutoSelectsRankOne(t *testing.T) {
	c := New(&fakeSource{models: catalog()})
	require.NoError(t, c.RefreshModels(context.Background()))

	free, ok := c.GetSelectedFreeModel()
	require.True(t, ok)
	assert.Equal(t, "google/gemma:free", free.ID)

	paid, ok := c.GetSelectedPaidModel()
	require.True(t, ok)
	assert.Equal(t, "openai/gpt-4o-mini", paid.ID)
	assert.Equal(t, "openai/gpt-4o-mini", c.SelectedPaidModelID())
	assert.False(t, c.GetLastUpdated().IsZero())
}

func TestRefreshModels_KeepsSelection(t *testing.T) {
	src := &fakeSource{models: catalog()}
	c := New(src)
	require.NoError(t, c.RefreshModels(context.Background()))
	require.True(t, c.SetSelectedPaidModel("OPENAI/GPT-4O"))

	require.NoError(t, c.RefreshModels(context.Background()))
	paid, _ := c.GetSelectedPaidModel()
	assert.Equal(t, "openai/gpt-4o", paid.ID)

	// selection disappears from the catalog: fall back to rank 1
	var remaining []core.CatalogModel
	for _, m := range catalog() {
		if m.ID != "openai/gpt-4o" {
			remaining = append(remaining, m)
		}
	}
	src.models = remaining
	require.NoError(t, c.RefreshModels(context.Background()))
	paid, _ = c.GetSelectedPaidModel()
	assert.Equal(t, "openai/gpt-4o-mini", paid.ID)
}

func TestRefreshModels_ErrorKeepsState(t *testing.T) {
	src := &fakeSource{models: catalog()}
	c := New(src)
	require.NoError(t, c.RefreshModels(context.Background()))
	before := c.Snapshot()

	src.err = errors.New("boom")
	require.Error(t, c.RefreshModels(context.Background()))
	assert.Equal(t, before, c.Snapshot())

	src.err = nil
	src.models = nil
	assert.ErrorIs(t, c.RefreshModels(context.Background()), ErrEmptyCatalog)
	assert.Equal(t, before, c.Snapshot())
}

func TestSetSelected_UnknownIsNoop(t *testing.T) {
	c := New(&fakeSource{models: catalog()})
	require.NoError(t, c.RefreshModels(context.Background()))

	assert.False(t, c.SetSelectedFreeModel("does/not-exist"))
	assert.False(t, c.SetSelectedFreeModel("openai/gpt-4o"))
	free, _ := c.GetSelectedFreeModel()
	assert.Equal(t, "google/gemma:free", free.ID)

	assert.True(t, c.SetSelectedFreeModel("vendor/zero"))
	free, _ = c.GetSelectedFreeModel()
	assert.Equal(t, "vendor/zero", free.ID)
}

func TestGetModelByID(t *testing.T) {
	c := New(&fakeSource{models: catalog()})
	require.NoError(t, c.RefreshModels(context.Background()))

	m, ok := c.GetModelByID("Google/Gemma:Free")
	require.True(t, ok)
	assert.True(t, m.IsFree)

	m, ok = c.GetModelByID("openai/gpt-4o")
	require.True(t, ok)
	assert.Equal(t, 2, m.Rank)
	prompt, completion := m.Prices()
	assert.InDelta(t, 0.0000025, prompt, 1e-12)
	assert.InDelta(t, 0.00001, completion, 1e-12)

	_, ok = c.GetModelByID("openrouter/auto")
	assert.False(t, ok)
}

func TestReadersReturnCopies(t *testing.T) {
	c := New(&fakeSource{models: catalog()})
	require.NoError(t, c.RefreshModels(context.Background()))

	free := c.GetFreeModels()
	free[0].ID = "mutated"
	assert.Equal(t, "google/gemma:free", c.GetFreeModels()[0].ID)
}

func TestSnapshotRestore(t *testing.T) {
	c := New(&fakeSource{models: catalog()})
	require.NoError(t, c.RefreshModels(context.Background()))
	require.True(t, c.SetSelectedPaidModel("openai/gpt-4o"))
	snap := c.Snapshot()

	restored := New(nil)
	restored.Restore(snap)
	assert.Equal(t, snap, restored.Snapshot())
	paid, ok := restored.GetSelectedPaidModel()
	require.True(t, ok)
	assert.Equal(t, "openai/gpt-4o", paid.ID)

	assert.Error(t, restored.RefreshModels(context.Background()))
}
