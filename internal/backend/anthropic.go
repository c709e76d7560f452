package backend

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

const systemPrompt = "You implement Go packages from specifications. " +
	"Follow the requested API exactly and answer with code only."

// Anthropic generates candidates with the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates a client. An empty apiKey falls back to ANTHROPIC_API_KEY.
func NewAnthropic(apiKey, model string, maxTokens int, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.ConfigError("anthropic API key is not set").
			UserAction().
			WithContext("env", "ANTHROPIC_API_KEY").
			Build()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Generate(ctx context.Context, req *Request) (*Response, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "render prompt").Build()
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if stderrors.As(err, &apiErr) {
			return nil, classifyStatus(a.Name(), apiErr.StatusCode, err)
		}
		return nil, classifyTransport(a.Name(), err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	return &Response{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
