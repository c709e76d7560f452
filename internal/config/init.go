package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const exampleConfig = `# mdcompile configuration
build:
  sources:
    - ./specs
  workers: 4

generation:
  backend: anthropic          # anthropic | gemini | command | fixture
  model: claude-sonnet-4-5
  api_key: ${ANTHROPIC_API_KEY}
  max_attempts: 3
  retry_backoff: linear       # fixed | linear | exponential
  retry_initial_delay: 1s
  retry_max_delay: 30s
  attempt_timeout: 5m

verification:
  test_timeout: 10s

cache:
  enabled: true
  directory: .mdcompile

output:
  directory: ./build
  module: mdout
  clean: false
  git_commit: false

events:
  history: true
  # nats_url: nats://127.0.0.1:4222
  subject: mdcompile.events
`

const exampleDocument = "---\n" +
	"module: calc\n" +
	"---\n" +
	"# Calculator\n\n" +
	"```module calc\n" +
	"Small integer arithmetic helpers.\n" +
	"```\n\n" +
	"```interface Add(a: int, b: int) -> int\n" +
	"Returns the sum of a and b.\n" +
	"```\n\n" +
	"```function add implements=Add tests=adds_small\n" +
	"Adds both operands without overflow checks.\n" +
	"```\n\n" +
	"```test adds_small kind=unit targets=add\n" +
	"input: Add(2, 3)\n" +
	"expect: 5\n" +
	"```\n"

// Init writes an example configuration file and, when specDir is not empty,
// an example annotated document into it.
func Init(configPath, specDir string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if specDir == "" {
		return nil
	}
	if err := os.MkdirAll(specDir, 0o750); err != nil {
		return fmt.Errorf("create spec directory: %w", err)
	}
	docPath := filepath.Join(specDir, "calc.md")
	if _, err := os.Stat(docPath); err == nil && !force {
		return nil
	}
	if err := os.WriteFile(docPath, []byte(exampleDocument), 0o600); err != nil {
		return fmt.Errorf("write example document: %w", err)
	}
	return nil
}
