// coach/services/llm/llm.go
package llm

import (
	"context"
	"errors"
	"fmt"

	"essaycoach/coach/config"
)

var ErrEmptyCompletion = errors.New("no content in completion")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params selects the model and its sampling behaviour for one call.
type Params struct {
	Model            string
	Temperature      float32
	PresencePenalty  float32
	FrequencyPenalty float32
	MaxTokens        int
}

// Client produces the next message of a conversation. Implementations are
// synchronous; callers that need a pending state run them on a goroutine.
type Client interface {
	Complete(ctx context.Context, messages []Message, p Params) (string, error)
}

// New builds the Client for the configured provider.
func New(ctx context.Context, cfg config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case "", config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.LLMBaseURL == "" {
			return nil, errors.New("missing OPENAI_API_KEY (or LLM_BASE_URL for a local server)")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.LLMBaseURL), nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("missing GEMINI_API_KEY")
		}
		return NewGeminiClient(ctx, cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
