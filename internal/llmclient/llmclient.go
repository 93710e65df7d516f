// Package llmclient wraps the OpenAI-compatible chat-completions API used
// by every CDEME stage (extraction, refinement, adjudication). It talks to
// Perplexity's sonar-pro model through an OpenAI-compatible base URL via
// github.com/openai/openai-go, so the call shape and truncation handling
// match what the teacher's own LLM client does for its provider-agnostic
// chat completions.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultBaseURL = "https://api.perplexity.ai"

// Model is the fixed chat-completions model used across every stage.
const Model = "sonar-pro"

// CallOptions configures one chat-completions call. Each CDEME stage uses
// its own MaxTokens budget: ~6144 for extraction, ~10240 for refinement,
// ~40960 for adjudication. Temperature is a pointer so the zero value
// (every CDEME call site leaves it unset) omits the field from the request
// entirely rather than pinning it to 0.0 — §6 specifies provider-default
// temperature.
type CallOptions struct {
	Temperature *float64
	MaxTokens   int64
	Timeout     time.Duration
}

// DefaultCallOptions returns conservative defaults; callers override
// MaxTokens per stage.
func DefaultCallOptions() CallOptions {
	return CallOptions{MaxTokens: 4096, Timeout: 120 * time.Second}
}

// ErrOutputTruncated is returned when the completion hit its max_tokens
// budget before finishing. Callers treat this as a ParseFailure-adjacent
// condition: the response prefix is still returned alongside the error so a
// tolerant caller can attempt to salvage partial JSON.
type ErrOutputTruncated struct {
	Model        string
	MaxTokens    int64
	OutputTokens int64
}

func (e *ErrOutputTruncated) Error() string {
	return fmt.Sprintf("llm output truncated: model %s hit max_tokens=%d after %d output tokens", e.Model, e.MaxTokens, e.OutputTokens)
}

// IsTruncated reports whether err is (or wraps) an ErrOutputTruncated.
func IsTruncated(err error) bool {
	var t *ErrOutputTruncated
	return errors.As(err, &t)
}

// Result holds a completed call's content and token accounting.
type Result struct {
	Content      string
	FinishReason string
	InputTokens  int64
	OutputTokens int64
}

// Client issues chat-completions calls against an OpenAI-compatible
// endpoint.
type Client struct {
	sdk    openai.Client
	logger *slog.Logger
}

// New builds a Client. apiKey is PERPLEXITY_API_KEY; baseURL defaults to
// Perplexity's API when empty, overridable for tests against a local stub.
func New(apiKey, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	sdk := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &Client{sdk: sdk, logger: logger}
}

// Complete sends prompt as a single user message and returns the model's
// reply. A finish_reason of "length" yields ErrOutputTruncated alongside the
// partial content, matching the teacher's truncation-detection contract.
func (c *Client) Complete(ctx context.Context, prompt string, opts CallOptions) (*Result, error) {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = DefaultCallOptions().MaxTokens
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultCallOptions().Timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(opts.MaxTokens),
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	completion, err := c.sdk.Chat.Completions.New(callCtx, params)
	if err != nil {
		c.logger.Error("llm call failed", "model", Model, "error", err)
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("chat completion: no choices returned")
	}

	choice := completion.Choices[0]
	result := &Result{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}

	if result.FinishReason == "length" {
		c.logger.Warn("llm output truncated", "model", Model, "max_tokens", opts.MaxTokens, "output_tokens", result.OutputTokens)
		return result, &ErrOutputTruncated{Model: Model, MaxTokens: opts.MaxTokens, OutputTokens: result.OutputTokens}
	}

	return result, nil
}
