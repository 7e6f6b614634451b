package providermodels

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"freeway/internal/core"
)

const recencyWindow = 180 * 24 * time.Hour

var nonChatMarkers = []string{
	"embed", "embedding", "moderation", "whisper", "tts", "audio", "dall-e", "image",
	"rerank", "transcribe", "realtime", "search", "similarity", "guard", "vision-only",
	"edit", "davinci", "babbage", "ada-",
}

var chatMarkers = []string{
	"gpt-", "o1", "o3", "o4", "chatgpt", "gemini", "llama", "mixtral", "mistral", "ministral",
	"codestral", "pixtral", "open-mistral", "command", "qwen", "gemma", "phi", "deepseek",
	"zephyr", "claude", "chat", "instruct", "aya",
}

// dated snapshot suffixes: -2024-08-06, -0613, -2407
var datedSnapshot = regexp.MustCompile(`-(\d{4}-\d{2}-\d{2}|\d{4,})$`)

type flagshipRule struct {
	match func(id string) bool
	bonus float64
}

func contains(sub string) func(string) bool {
	return func(id string) bool { return strings.Contains(id, sub) }
}

// flagships holds the per-provider bonus table. The first matching rule wins.
var flagships = map[string][]flagshipRule{
	"openai": {
		{func(id string) bool { return strings.Contains(id, "gpt-4o") && !strings.Contains(id, "mini") }, 100},
		{contains("gpt-4o-mini"), 80},
		{contains("gpt-4-turbo"), 70},
		{func(id string) bool { return strings.HasPrefix(id, "o1") || strings.HasPrefix(id, "o3") }, 60},
		{contains("gpt-4"), 50},
		{contains("gpt-3.5"), 20},
	},
	"gemini": {
		{contains("2.5-pro"), 100},
		{contains("2.5-flash"), 90},
		{contains("2.0-flash"), 80},
		{contains("1.5-pro"), 70},
		{contains("1.5-flash"), 60},
	},
	"groq": {
		{contains("llama-3.3-70b"), 100},
		{contains("llama-3.1-70b"), 80},
		{contains("mixtral"), 60},
		{contains("llama-3.1-8b"), 50},
		{contains("gemma"), 40},
	},
	"mistral": {
		{contains("mistral-large"), 100},
		{contains("mistral-medium"), 80},
		{contains("mistral-small"), 70},
		{contains("open-mixtral"), 50},
		{contains("open-mistral"), 40},
	},
	"cohere": {
		{contains("command-r-plus"), 100},
		{contains("command-r"), 80},
		{contains("command-light"), 30},
		{contains("command"), 50},
	},
	"huggingface": {
		{contains("llama-3.3"), 100},
		{contains("llama-3.1"), 80},
		{contains("qwen2.5"), 75},
		{contains("mistral"), 60},
		{contains("gemma"), 50},
		{contains("phi"), 40},
	},
}

// IsChatModel reports whether the model ID looks like a chat completion model.
func IsChatModel(id string) bool {
	id = strings.ToLower(id)
	for _, marker := range nonChatMarkers {
		if strings.Contains(id, marker) {
			return false
		}
	}
	for _, marker := range chatMarkers {
		if strings.Contains(id, marker) {
			return true
		}
	}
	return false
}

// ScoreModel rates a model for use as the provider's default.
func ScoreModel(provider string, m core.ProviderModelInfo, now time.Time) float64 {
	id := strings.ToLower(m.ID)
	score := float64(m.ContextLength) / 10000

	if m.CreatedAt != nil {
		if age := now.Sub(*m.CreatedAt); age >= 0 && age < recencyWindow {
			score += 50 * (1 - float64(age)/float64(recencyWindow))
		}
	}

	for _, rule := range flagships[provider] {
		if rule.match(id) {
			score += rule.bonus
			break
		}
	}

	if strings.Contains(id, "instruct") || strings.Contains(id, "chat") {
		score += 20
	}
	if strings.Contains(id, "preview") || strings.Contains(id, "experimental") || strings.Contains(id, "exp") {
		score -= 10
	}
	if strings.Contains(id, "latest") {
		score += 15
	}
	if datedSnapshot.MatchString(id) {
		score -= 30
	}
	return score
}

// RankModels returns the available chat models of provider, best first.
// Equal scores keep their input order.
func RankModels(provider string, models []core.ProviderModelInfo, now time.Time) []core.ProviderModelInfo {
	type scored struct {
		model core.ProviderModelInfo
		score float64
	}
	var candidates []scored
	for _, m := range models {
		if !m.IsAvailable || !IsChatModel(m.ID) {
			continue
		}
		candidates = append(candidates, scored{m, ScoreModel(provider, m, now)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	out := make([]core.ProviderModelInfo, len(candidates))
	for i, c := range candidates {
		out[i] = c.model
	}
	return out
}

// GetBestModel returns the highest-scoring available chat model of provider.
func (c *Cache) GetBestModel(provider string) (core.ProviderModelInfo, bool) {
	ranked := RankModels(provider, c.GetModels(provider), time.Now())
	if len(ranked) == 0 {
		return core.ProviderModelInfo{}, false
	}
	return ranked[0], true
}

// GetBestModelID returns the ID of GetBestModel, or "".
func (c *Cache) GetBestModelID(provider string) string {
	m, ok := c.GetBestModel(provider)
	if !ok {
		return ""
	}
	return m.ID
}
