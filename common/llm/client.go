package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyCompletion is returned when the model answers with no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// Completer turns a prompt into a reply. Implementations must be safe for
// concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	SystemPrompt   string
	MaxTokens      int
	RequestTimeout time.Duration
}

type client struct {
	openai       openai.Client
	model        string
	systemPrompt string
	maxTokens    int
}

func New(cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	// One HTTP attempt per message: a late answer is delivered out-of-band,
	// never re-requested.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &client{
		openai:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    maxTokens,
	}, nil
}

func (c *client) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	slog.DebugContext(ctx, "llm completion finished",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", ErrEmptyCompletion)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("finish reason %q: %w", resp.Choices[0].FinishReason, ErrEmptyCompletion)
	}

	return content, nil
}

func (c *client) Model() string {
	return c.model
}

// Failure kinds reported by Classify.
const (
	FailureCanceled    = "canceled"
	FailureRateLimited = "rate_limited"
	FailureServer      = "server_error"
	FailureClient      = "client_error"
	FailureEmpty       = "empty"
	FailureNetwork     = "network"
)

// Classify buckets a completion error for logs and metric labels.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureCanceled
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return FailureEmpty
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return FailureRateLimited
		case apiErr.StatusCode >= 500:
			return FailureServer
		default:
			return FailureClient
		}
	}

	return FailureNetwork
}
