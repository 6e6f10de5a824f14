package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultModel is used when no GPT version is given.
const DefaultModel = openai.GPT3Dot5Turbo

const systemPrompt = "You are a research assistant. You are given a user query and a list of scientific " +
	"articles retrieved by semantic search (title, authors, abstract, journal reference). " +
	"Answer the query using only these articles, citing titles where relevant. " +
	"If the articles do not answer the query, say so."

// Summarizer asks a chat completion model to answer a query from retrieved context.
type Summarizer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config configures the chat completion summarizer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// New creates a summarizer. The API key must be non-empty.
func New(cfg Config) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Summarizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}, nil
}

// Summarize returns the model's answer verbatim.
func (s *Summarizer) Summarize(ctx context.Context, query, retrieved string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(query, retrieved)},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	s.logger.Debug("summarized",
		zap.String("model", s.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func userPrompt(query, retrieved string) string {
	return "Query: " + query + "\n\nArticles:\n" + retrieved
}
