package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := setupTestHome(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Pipeline.AutoApproveThreshold)
	assert.Equal(t, 0.5, cfg.Pipeline.ReviewThreshold)
	assert.False(t, cfg.Pipeline.AutoApproveEnabled)
	assert.Equal(t, 2, cfg.Pipeline.ContextWindow)
	assert.Equal(t, 3, cfg.Pipeline.GeneralizationThreshold)
	assert.Equal(t, 168*time.Hour, cfg.RecencyWindow())
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(home, ".local/share/ruleminer/ruleminer.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(home, ".claude/CLAUDE.md"), cfg.Writer.GlobalDocument)
	assert.Equal(t, "CLAUDE.md", cfg.Writer.ProjectDocument)
	assert.True(t, cfg.Secrets.Enabled)
	assert.True(t, cfg.Review.Archive)
	assert.Equal(t, ProtocolHTTP, cfg.Telemetry.Protocol)
	assert.Equal(t, 4, cfg.Transcripts.Workers)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `
pipeline:
  review_threshold: 0.6
  auto_approve_enabled: true
  recency_window: 72h
store:
  driver: memory
writer:
  rules_dir: .claude/rules
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Pipeline.ReviewThreshold)
	assert.Equal(t, 0.85, cfg.Pipeline.AutoApproveThreshold)
	assert.True(t, cfg.Pipeline.AutoApproveEnabled)
	assert.Equal(t, 72*time.Hour, cfg.RecencyWindow())
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ".claude/rules", cfg.Writer.RulesDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "pipeline:\n  review_threshold: 0.6\n")

	t.Setenv("RULEMINER_PIPELINE_REVIEW_THRESHOLD", "0.7")
	t.Setenv("RULEMINER_PIPELINE_AUTO_APPROVE_ENABLED", "true")
	t.Setenv("RULEMINER_STORE_PATH", "~/custom.db")
	t.Setenv("RULEMINER_TELEMETRY_API_KEY", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Pipeline.ReviewThreshold)
	assert.True(t, cfg.Pipeline.AutoApproveEnabled)
	assert.Equal(t, filepath.Join(home, "custom.db"), cfg.Store.Path)
	assert.Equal(t, "s3cret", cfg.Telemetry.APIKey.Value())
	assert.Equal(t, "[REDACTED]", cfg.Telemetry.APIKey.String())
}

func TestLoad_FileErrors(t *testing.T) {
	home := setupTestHome(t)

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(home, "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "# "+strings.Repeat("x", maxConfigFileSize)+"\n")
		_, err := Load(path)
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("world writable", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "store:\n  driver: memory\n")
		require.NoError(t, os.Chmod(path, 0o666))
		_, err := Load(path)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "pipeline: [unclosed\n")
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "pipeline:\n  auto_approve_threshold: 0.4\n")
		_, err := Load(path)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"RULEMINER_PIPELINE_REVIEW_THRESHOLD": "pipeline.review_threshold",
		"RULEMINER_STORE_DRIVER":              "store.driver",
		"RULEMINER_WRITER_GLOBAL_DOCUMENT":    "writer.global_document",
		"RULEMINER_VERBOSE":                   "verbose",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, envKey(in))
		})
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	setupTestHome(t)
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"review threshold above one", func(c *Config) { c.Pipeline.ReviewThreshold = 1.5 }},
		{"auto threshold negative", func(c *Config) { c.Pipeline.AutoApproveThreshold = -0.1 }},
		{"auto below review", func(c *Config) { c.Pipeline.AutoApproveThreshold = 0.3 }},
		{"negative context window", func(c *Config) { c.Pipeline.ContextWindow = -1 }},
		{"generalization threshold one", func(c *Config) { c.Pipeline.GeneralizationThreshold = 1 }},
		{"zero recency window", func(c *Config) { c.Pipeline.RecencyWindow = 0 }},
		{"zero workers", func(c *Config) { c.Transcripts.Workers = 0 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"no review dir", func(c *Config) { c.Review.Dir = "" }},
		{"no global document", func(c *Config) { c.Writer.GlobalDocument = "" }},
		{"no project target", func(c *Config) { c.Writer.ProjectDocument = "" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"unknown protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }},
		{"enabled without endpoint", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Endpoint = "" }},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, validConfig(t).Validate())
	})
	t.Run("memory driver needs no path", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Store.Driver = DriverMemory
		cfg.Store.Path = ""
		require.NoError(t, cfg.Validate())
	})
}

func TestWriteDefault(t *testing.T) {
	home := setupTestHome(t)
	path := filepath.Join(home, "conf", "config.yaml")

	require.NoError(t, WriteDefault(path, false))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.ErrorIs(t, WriteDefault(path, false), ErrConfigExists)
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Pipeline.ReviewThreshold)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90m")))
	assert.Equal(t, 90*time.Minute, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1h30m0s", string(text))

	require.Error(t, d.UnmarshalText([]byte("-1h")))
	require.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecret(t *testing.T) {
	s := Secret("token")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "Secret([REDACTED])", s.GoString())
	assert.True(t, s.IsSet())

	out, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(out))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}
