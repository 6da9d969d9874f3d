package llm

import (
	"context"
	"fmt"
	"math"

	"essaycoach/coach/utils/logging"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatCompleter is the subset of *openai.Client used here; tests mock it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to OpenAI or any server speaking its chat API
// (Ollama, Groq) when a base URL is given.
type OpenAIClient struct {
	api ChatCompleter
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg)}
}

func NewOpenAIClientWith(api ChatCompleter) *OpenAIClient {
	return &OpenAIClient{api: api}
}

// Complete executes a single chat completion request (non-streaming)
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, p Params) (string, error) {
	defer logging.LogDuration(ctx, "openai_complete")()

	// go-openai drops a zero temperature from the request body, which the
	// server reads as its default of 1
	temperature := p.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:            p.Model,
		Messages:         make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature:      temperature,
		PresencePenalty:  p.PresencePenalty,
		FrequencyPenalty: p.FrequencyPenalty,
		MaxTokens:        p.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		logging.ErrorLogger.Error("openai completion failed", zap.String("model", p.Model), zap.Error(err))
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
