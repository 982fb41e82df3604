// Package analysisllm wraps the analysis model used to generate a
// conversation's narrative summary: a small, non-streaming interface over
// github.com/anthropics/anthropic-sdk-go, kept abstract enough that the
// Analysis Worker can run against a scripted double in tests.
package analysisllm

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// MessagesClient captures the subset of the Anthropic SDK used here, so a
// test double can stand in for *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Request is one analysis completion call: a system prompt plus a single
// user turn carrying the (possibly truncated) conversation transcript.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response carries the model's raw text output plus the token accounting
// the Analysis Worker persists alongside the analysis row.
type Response struct {
	ModelName    string
	Content      string
	InputTokens  int64
	OutputTokens int64
}

// Client is the interface the Analysis Worker depends on.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// AnthropicClient implements Client on top of the Messages API.
type AnthropicClient struct {
	msg       MessagesClient
	model     string
	maxTokens int
}

// Options configures a new AnthropicClient.
type Options struct {
	APIKey    string
	BaseURL   string // empty uses the SDK default
	Model     string
	MaxTokens int
}

// New builds an AnthropicClient from already-resolved options.
func New(opts Options) (*AnthropicClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("analysisllm: api key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("analysisllm: model is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	ac := sdk.NewClient(reqOpts...)

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicClient{msg: &ac.Messages, model: opts.Model, maxTokens: maxTokens}, nil
}

// Complete issues a single non-streaming Messages.New call and returns the
// concatenated text of the response.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     sdk.Model(c.model),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("analysisllm: messages.new: %w", err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Response{
		ModelName:    string(msg.Model),
		Content:      content,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}
