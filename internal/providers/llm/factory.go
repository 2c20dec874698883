package llm

import (
	"context"
	"os"
	"strings"
)

// NewFromEnv returns a Client based on environment variables.
// Supported providers:
//   - LLM_PROVIDER=openai|gemini
//   - For OpenAI: OPENAI_API_KEY, optional LLM_MODEL, OPENAI_API_BASE
//   - For Gemini: GOOGLE_API_KEY, optional LLM_MODEL
//
// If nothing is configured, returns a MockClient. The returned client is
// constructed once at process start and passed by reference; there are no
// module-level singletons.
func NewFromEnv(ctx context.Context) Client {
	prov := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	switch prov {
	case "openai":
		if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
			return &OpenAIClient{APIKey: key, Model: modelWithDefault("gpt-4o-mini"), BaseURL: strings.TrimRight(os.Getenv("OPENAI_API_BASE"), "/")}
		}
	case "gemini":
		if key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); key != "" {
			if c, err := NewGeminiClient(ctx, key, modelWithDefault("gemini-1.5-flash")); err == nil {
				return c
			}
		}
	}

	// Auto-detect by API key presence if provider not specified.
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return &OpenAIClient{APIKey: key, Model: modelWithDefault("gpt-4o-mini"), BaseURL: strings.TrimRight(os.Getenv("OPENAI_API_BASE"), "/")}
	}
	if key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); key != "" {
		if c, err := NewGeminiClient(ctx, key, modelWithDefault("gemini-1.5-flash")); err == nil {
			return c
		}
	}

	return &MockClient{}
}

func modelWithDefault(def string) string {
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		return v
	}
	return def
}
