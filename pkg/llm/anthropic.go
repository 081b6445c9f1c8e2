package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultAnthropicModel is used when no model override is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	// DefaultMaxTokens caps the response length when a caller passes 0.
	DefaultMaxTokens = 2048
	// DefaultMaxRetries bounds the exponential-backoff retry loop.
	DefaultMaxRetries = 3
)

// AnthropicConfig configures AnthropicChatLLM.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
}

// AnthropicChatLLM implements ChatLLM against Claude's Messages API
// (§6, grounded on the haasonsaas-nexus Anthropic provider's client
// construction and retry classification, adapted here to the simpler
// synchronous chat contract the extraction coordinator needs).
type AnthropicChatLLM struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	log          *slog.Logger
}

// NewAnthropicChatLLM builds a ChatLLM backed by the Anthropic SDK.
func NewAnthropicChatLLM(cfg AnthropicConfig) (*AnthropicChatLLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: anthropic API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultAnthropicModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicChatLLM{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		log:          slog.With("component", "llm.anthropic"),
	}, nil
}

// AnthropicChatLLMFromEnv reads ANTHROPIC_API_KEY, ANTHROPIC_BASE_URL
// and ANTHROPIC_MODEL from the environment.
func AnthropicChatLLMFromEnv() (*AnthropicChatLLM, error) {
	return NewAnthropicChatLLM(AnthropicConfig{
		APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		BaseURL:      os.Getenv("ANTHROPIC_BASE_URL"),
		DefaultModel: os.Getenv("ANTHROPIC_MODEL"),
	})
}

// Chat sends messages to Claude, retrying retryable failures (rate
// limits, 5xx, timeouts) with exponential backoff.
func (p *AnthropicChatLLM) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: int64(p.resolveMaxTokens(maxTokens)),
		Messages:  p.convertMessages(messages),
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}
	if system := p.extractSystem(messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var result string
	operation := func() error {
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			if !p.isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = p.extractText(msg)
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.maxRetries))
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", fmt.Errorf("llm: anthropic chat failed: %w", err)
	}
	return result, nil
}

func (p *AnthropicChatLLM) resolveMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return DefaultMaxTokens
	}
	return maxTokens
}

func (p *AnthropicChatLLM) extractSystem(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (p *AnthropicChatLLM) convertMessages(messages []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case RoleSystem:
			// handled separately via params.System
		}
	}
	return out
}

func (p *AnthropicChatLLM) extractText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if text := block.AsText(); text.Text != "" {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

// isRetryable classifies Anthropic API errors the way the reference
// provider does: rate limits, 5xx, and transport timeouts are worth
// retrying; auth and validation errors are not.
func (p *AnthropicChatLLM) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"):
		return true
	default:
		return false
	}
}

var _ ChatLLM = (*AnthropicChatLLM)(nil)
