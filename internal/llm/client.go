// Package llm wraps the Anthropic SDK for the two shapes of model access
// this tool needs: single system+user completions for the planner, and the
// tool-use loop the orchestrate command drives. Both direct API and AWS
// Bedrock transports are supported.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// completionMaxTokens bounds planner completions; plans are small JSON.
const completionMaxTokens = 4096

// Client holds a configured SDK client and the model it speaks to.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// ClientConfig selects the model and transport. An empty APIKey falls back
// to the ANTHROPIC_API_KEY environment variable; the AWS fields only apply
// when UseAWSBedrock is set.
type ClientConfig struct {
	Model         anthropic.Model
	APIKey        string
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
}

// NewClient builds a client for the configured transport.
func NewClient(cfg ClientConfig) (*Client, error) {
	opt, err := transportOption(cfg)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = bedrockInferenceProfile(model)
	}

	return &Client{inner: anthropic.NewClient(opt), model: model}, nil
}

func transportOption(cfg ClientConfig) (option.RequestOption, error) {
	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		return bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...), nil
	}

	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, errors.New("no API key: set anthropic.api_key or ANTHROPIC_API_KEY")
	}
	return option.WithAPIKey(key), nil
}

// bedrockInferenceProfile maps a standard model name to its cross-region
// inference profile. Unknown models pass through so callers can name a
// profile directly in config.
func bedrockInferenceProfile(model anthropic.Model) anthropic.Model {
	switch model {
	case anthropic.ModelClaudeSonnet4_20250514:
		return "us.anthropic.claude-sonnet-4-20250514-v1:0"
	case anthropic.ModelClaudeSonnet4_5_20250929:
		return "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	case anthropic.ModelClaudeHaiku4_5_20251001:
		return "us.anthropic.claude-haiku-4-5-20251001-v1:0"
	case anthropic.ModelClaudeOpus4_1_20250805:
		return "us.anthropic.claude-opus-4-1-20250805-v1:0"
	case anthropic.ModelClaude3_5Haiku20241022:
		return "us.anthropic.claude-3-5-haiku-20241022-v1:0"
	default:
		return model
	}
}

// Model reports the model in use, after any Bedrock translation.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Complete sends one system+user exchange and returns the concatenated
// text of the response. Deadlines come from the caller's context.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: completionMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	return text, nil
}
