package backend

import (
	"context"
	stderrors "errors"
	"os"

	"google.golang.org/genai"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Gemini generates candidates with the Gemini API.
type Gemini struct {
	cli   *genai.Client
	model string
}

// NewGemini creates a client. An empty apiKey falls back to GEMINI_API_KEY.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.ConfigError("gemini API key is not set").
			UserAction().
			WithContext("env", "GEMINI_API_KEY").
			Build()
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "create gemini client").Build()
	}
	return &Gemini{cli: cli, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Generate(ctx context.Context, req *Request) (*Response, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "render prompt").Build()
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: systemPrompt + "\n\n" + prompt}}}},
		nil,
	)
	if err != nil {
		var apiErr genai.APIError
		if stderrors.As(err, &apiErr) {
			return nil, classifyStatus(g.Name(), apiErr.Code, err)
		}
		return nil, classifyTransport(g.Name(), err)
	}
	return &Response{Text: resp.Text()}, nil
}
