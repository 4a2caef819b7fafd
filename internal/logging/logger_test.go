package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/ruleminer/internal/config"
)

func bufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false
	cfg.Output.Writer = zapcore.AddSync(&buf)
	cfg.Caller.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger_WritesJSON(t *testing.T) {
	logger, buf := bufferLogger(t, nil)

	ctx := WithStage(WithRunID(context.Background(), "run-1"), "aggregate")
	logger.Info(ctx, "candidate created", zap.String("candidate.id", "c1"), zap.Int("occurrences", 3))
	logger.Debug(ctx, "not enabled at info")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "candidate created", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, ServiceName, lines[0]["service"])
	assert.Equal(t, "run-1", lines[0]["run.id"])
	assert.Equal(t, "aggregate", lines[0]["run.stage"])
	assert.Equal(t, "c1", lines[0]["candidate.id"])
	assert.EqualValues(t, 3, lines[0]["occurrences"])
}

func TestNewLogger_Redaction(t *testing.T) {
	logger, buf := bufferLogger(t, nil)

	logger.Info(context.Background(), "scrubbed ghp_aaaaaaaaaaaaaaaaaaaaaaaa",
		zap.String("token", "abc"),
		zap.String("rule", "never commit ghp_bbbbbbbbbbbbbbbbbbbbbbbb"),
		Secret("otlp.key", config.Secret("abcd")),
	)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "scrubbed [REDACTED:pattern]", lines[0]["msg"])
	assert.Equal(t, "[REDACTED]", lines[0]["token"])
	assert.Equal(t, "never commit [REDACTED:pattern]", lines[0]["rule"])
	assert.Equal(t, "[REDACTED:4]", lines[0]["otlp.key"])
}

func TestNewLogger_RedactsWithFields(t *testing.T) {
	logger, buf := bufferLogger(t, nil)

	logger.With(zap.String("password", "hunter2")).Warn(context.Background(), "child")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["password"])
}

func TestNewLogger_Console(t *testing.T) {
	logger, buf := bufferLogger(t, func(c *Config) { c.Format = "console" })
	logger.Warn(context.Background(), "review artifact skipped")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "review artifact skipped")
}

func TestNewLogger_OTELCore(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false
	cfg.Output.OTEL = true

	logger, err := NewLogger(cfg, noop.NewLoggerProvider())
	require.NoError(t, err)
	logger.Info(context.Background(), "bridged")

	cfg.Output.OTEL = false
	_, err = NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "trace message")
	tl.Debug(ctx, "debug message")
	tl.Info(ctx, "info message")
	tl.Warn(ctx, "warn message")
	tl.Error(ctx, "error message")

	tl.AssertLogged(t, TraceLevel, "trace message")
	tl.AssertLogged(t, zapcore.DebugLevel, "debug message")
	tl.AssertLogged(t, zapcore.InfoLevel, "info message")
	tl.AssertLogged(t, zapcore.WarnLevel, "warn message")
	tl.AssertLogged(t, zapcore.ErrorLevel, "error message")
	assert.Len(t, tl.All(), 5)
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()

	child := tl.With(zap.String("component", "writer")).Named("rulewriter")
	child.Info(context.Background(), "document written")

	entries := tl.FilterMessage("document written").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "rulewriter", entries[0].LoggerName)
	assert.Equal(t, "writer", entries[0].ContextMap()["component"])
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.LoggingConfig{Level: "trace", Format: "console", Sampling: true}, true)
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Sampling.Enabled)
	assert.True(t, cfg.Output.OTEL)

	_, err = FromConfig(config.LoggingConfig{Level: "loud"}, false)
	require.Error(t, err)

	_, err = FromConfig(config.LoggingConfig{Format: "xml"}, false)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no outputs", func(c *Config) { c.Output.Stderr = false }},
		{"zero sampling tick", func(c *Config) { c.Sampling.Enabled = true; c.Sampling.Tick = 0 }},
		{"negative caller skip", func(c *Config) { c.Caller.Skip = -1 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"(unclosed"} }},
		{"long pattern", func(c *Config) { c.Redaction.Patterns = []string{strings.Repeat("a", maxPatternLen+1)} }},
		{"empty field key", func(c *Config) { c.Fields[""] = "x" }},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"trace": TraceLevel,
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := LevelFromString(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	got, err := LevelFromString("verbose")
	require.Error(t, err)
	assert.Equal(t, zapcore.InfoLevel, got)
}
