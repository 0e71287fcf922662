package llm

import "strings"

// SupportsTemperature reports whether a model accepts a caller-chosen
// temperature. Reasoning models only run at their default temperature and
// reject the parameter.
//
// Detection strategy (priority order):
//  1. Known model list: prefix matches for confirmed default-only models
//  2. Default: assume the parameter is supported
func SupportsTemperature(modelName string) bool {
	baseName := baseModelName(modelName)

	defaultOnly := []string{
		"gpt-5", // gpt-5, gpt-5-mini, gpt-5-nano
		"o1", "o3", "o4-mini",
	}
	for _, known := range defaultOnly {
		if strings.HasPrefix(baseName, known) {
			return false
		}
	}
	return true
}

// GetContextWindow returns the approximate context window in tokens for a known model.
// Returns 0 for unrecognised models; callers should apply their own safe default.
// Ordered from most to least specific prefix to avoid short-prefix false matches.
func GetContextWindow(modelName string) int {
	baseName := baseModelName(modelName)

	knownWindows := []struct {
		prefix string
		tokens int
	}{
		{"gpt-5", 400_000},
		{"gpt-4.1", 1_000_000},
		{"gpt-4o", 128_000},
		{"gpt-4-turbo", 128_000},
		{"gpt-4", 8_192},
		{"gpt-3.5-turbo", 16_385},
		{"o1", 200_000},
		{"o3", 200_000},
		{"o4-mini", 200_000},
		{"claude-", 200_000},
		{"gemini-2.5", 1_000_000},
		{"qwen2.5", 128_000},
	}

	for _, kw := range knownWindows {
		if strings.HasPrefix(baseName, kw.prefix) {
			return kw.tokens
		}
	}
	return 0
}

// baseModelName lowercases and strips provider prefixes
// (e.g. "Pro/openai/GPT-4o" -> "gpt-4o").
func baseModelName(modelName string) string {
	parts := strings.Split(strings.ToLower(modelName), "/")
	return parts[len(parts)-1]
}
