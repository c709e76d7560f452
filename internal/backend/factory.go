package backend

import (
	"context"

	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// New creates the backend selected by the generation configuration.
func New(ctx context.Context, gen config.GenerationConfig) (Backend, error) {
	switch config.NormalizeBackend(string(gen.Backend)) {
	case config.BackendAnthropic:
		return NewAnthropic(gen.APIKey, gen.Model, gen.MaxTokens)
	case config.BackendGemini:
		return NewGemini(ctx, gen.APIKey, gen.Model)
	case config.BackendCommand:
		return NewCommand(gen.Command)
	case config.BackendFixture:
		return NewFixture(gen.FixtureDir)
	default:
		return nil, errors.ConfigError("unknown generation backend").
			WithContext("backend", string(gen.Backend)).
			Build()
	}
}

// Func adapts a function to Backend.
type Func func(ctx context.Context, req *Request) (*Response, error)

func (f Func) Name() string { return "func" }

func (f Func) Generate(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }
