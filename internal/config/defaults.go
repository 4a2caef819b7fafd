package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfigExists is returned by WriteDefault when the target file exists.
var ErrConfigExists = errors.New("config file already exists")

// DefaultYAML is the built-in configuration. Load layers the config file and
// environment on top of it, and WriteDefault writes it out verbatim.
const DefaultYAML = `# ruleminer configuration
pipeline:
  auto_approve_threshold: 0.85
  review_threshold: 0.5
  auto_approve_enabled: false
  context_window: 2
  generalization_threshold: 3
  recency_window: 168h

transcripts:
  dir: ~/.claude/projects
  workers: 4

store:
  driver: sqlite        # sqlite | memory
  path: ~/.local/share/ruleminer/ruleminer.db

review:
  dir: ~/.local/share/ruleminer/reviews
  archive: true

writer:
  global_document: ~/.claude/CLAUDE.md
  project_document: CLAUDE.md
  rules_dir: ""         # e.g. .claude/rules

secrets:
  enabled: true
  allowlist_file: ""    # gitleaks-style TOML allowlist

logging:
  level: info
  format: json
  sampling: false

telemetry:
  enabled: false
  endpoint: localhost:4318
  protocol: http        # http | grpc
  insecure: true
  service_name: ruleminer
  sample_rate: 1.0

metrics:
  textfile: ""          # prometheus textfile collector output
`

// DefaultPath returns ~/.config/ruleminer/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ruleminer", "config.yaml"), nil
}

// WriteDefault writes DefaultYAML to path with 0600 permissions. An existing
// file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultYAML), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
