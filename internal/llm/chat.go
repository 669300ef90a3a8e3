// Package llm wraps the chat-completion model behind a small interface the
// orchestrator can consume. Any OpenAI-compatible serving endpoint works.
package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/taskrelay/internal/retry"
)

// Config contains the settings for the chat model
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// StreamFunc receives raw text fragments while a response is being generated.
type StreamFunc func(ctx context.Context, chunk []byte) error

// Generator is the model call as seen by the orchestrator: one turn in,
// one content choice out, with optional incremental streaming.
type Generator interface {
	Generate(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool, stream StreamFunc) (*llms.ContentChoice, error)
}

// ChatModel implements Generator on top of a langchaingo model
type ChatModel struct {
	model     llms.Model
	maxTokens int
}

// NewChatModel creates a chat model for the configured endpoint
func NewChatModel(cfg Config) (*ChatModel, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}

	// Add custom base URL if provided
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	log.Debug().
		Str("model", cfg.Model).
		Str("base_url", cfg.BaseURL).
		Int("max_tokens", cfg.MaxTokens).
		Msg("Chat model created")

	return &ChatModel{model: model, maxTokens: cfg.MaxTokens}, nil
}

// Generate runs one model turn and returns the first content choice.
// Transient failures are retried with backoff, but only until the first
// streamed fragment has been delivered; after that a retry would replay
// text the consumer already saw.
func (m *ChatModel) Generate(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool, stream StreamFunc) (*llms.ContentChoice, error) {
	callOptions := []llms.CallOption{}

	if m.maxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(m.maxTokens))
	}

	if len(tools) > 0 {
		callOptions = append(callOptions, llms.WithTools(tools))
	}

	streamed := false
	if stream != nil {
		callOptions = append(callOptions, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) > 0 {
				streamed = true
			}
			return stream(ctx, chunk)
		}))
	}

	var choice *llms.ContentChoice
	err := retry.Do(ctx, retry.ModelConfig(), func() error {
		resp, err := m.model.GenerateContent(ctx, messages, callOptions...)
		if err != nil {
			if streamed {
				return retry.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("model returned no choices")
		}
		choice = resp.Choices[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	return choice, nil
}
