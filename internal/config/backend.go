package config

import "git.home.luguber.info/inful/mdcompile/internal/foundation"

// BackendKind selects the generation backend implementation.
type BackendKind string

const (
	BackendAnthropic BackendKind = "anthropic"
	BackendGemini    BackendKind = "gemini"
	BackendCommand   BackendKind = "command"
	BackendFixture   BackendKind = "fixture"
)

var backendNormalizer = foundation.NewNormalizer(map[string]BackendKind{
	"anthropic": BackendAnthropic,
	"claude":    BackendAnthropic,
	"gemini":    BackendGemini,
	"google":    BackendGemini,
	"command":   BackendCommand,
	"exec":      BackendCommand,
	"fixture":   BackendFixture,
	"fixtures":  BackendFixture,
	"replay":    BackendFixture,
}, "")

// NormalizeBackend canonicalizes user input returning empty string if unknown.
func NormalizeBackend(raw string) BackendKind {
	return backendNormalizer.Normalize(raw)
}
