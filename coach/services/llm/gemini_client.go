package llm

import (
	"context"
	"fmt"
	"strings"

	"essaycoach/coach/utils/logging"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{client: gc}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, messages []Message, p Params) (string, error) {
	defer logging.LogDuration(ctx, "gemini_complete")()

	contents, system := ConvertMessages(messages)
	resp, err := c.client.Models.GenerateContent(ctx, p.Model, contents, buildConfig(p, system))
	if err != nil {
		logging.ErrorLogger.Error("gemini completion failed", zap.String("model", p.Model), zap.Error(err))
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func buildConfig(p Params, system string) *genai.GenerateContentConfig {
	temp := p.Temperature
	presence := p.PresencePenalty
	frequency := p.FrequencyPenalty
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		PresencePenalty:  &presence,
		FrequencyPenalty: &frequency,
		MaxOutputTokens:  int32(p.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return cfg
}

// ConvertMessages splits system messages out into a single instruction and
// maps the rest onto Gemini's user/model roles.
func ConvertMessages(messages []Message) ([]*genai.Content, string) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return contents, strings.Join(system, "\n\n")
}
