package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when OpenAIConfig.Model is empty.
const DefaultModel = "gpt-4"

// Temperature for companion replies.
const Temperature = 0.85

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("empty reply from model")

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string        // optional, for compatible gateways and tests
	Timeout time.Duration // default: 30s
}

// OpenAIClient implements Generator over the chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *CircuitBreaker
}

// NewOpenAIClient creates a client. The API key is required.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIClient{
		client:  &client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		breaker: NewCircuitBreaker("openai", DefaultBreakerConfig()),
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Reply sends the persona, recent history, and the current message.
func (c *OpenAIClient) Reply(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.breaker.Execute(ctx, func() (string, error) {
		return c.complete(ctx, p)
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return reply, nil
}

func (c *OpenAIClient) complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    buildMessages(p),
		Temperature: openai.Float(Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

func buildMessages(p Prompt) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2*len(p.History)+3)
	msgs = append(msgs, openai.SystemMessage(Persona))
	for _, ex := range p.History {
		msgs = append(msgs, openai.UserMessage(ex.User), openai.AssistantMessage(ex.Companion))
	}
	msgs = append(msgs, openai.UserMessage(p.Message))
	msgs = append(msgs, openai.SystemMessage(fmt.Sprintf("Current user emotion: %s.", p.Emotion)))
	return msgs
}
