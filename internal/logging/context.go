package logging

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxIDLen = 128

// ContextFields extracts correlation data from context: the active span, the
// run, its current stage and the conversation being processed.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := RunIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	if stage := StageFromContext(ctx); stage != "" {
		fields = append(fields, zap.String("run.stage", stage))
	}
	if id := ConversationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("conversation.id", id))
	}
	return fields
}

type runCtxKey struct{}
type stageCtxKey struct{}
type conversationCtxKey struct{}

// cleanID makes an identifier safe to log: valid UTF-8, no control
// characters, bounded length.
func cleanID(id string) string {
	id = strings.ToValidUTF8(id, "")
	id = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, id)
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
		for !utf8.ValidString(id) {
			id = id[:len(id)-1]
		}
	}
	return id
}

// WithRunID adds the pipeline run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, cleanID(runID))
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey{}).(string)
	return s
}

// WithStage adds the pipeline stage name to context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageCtxKey{}, cleanID(stage))
}

// StageFromContext extracts the stage name from context.
func StageFromContext(ctx context.Context) string {
	s, _ := ctx.Value(stageCtxKey{}).(string)
	return s
}

// WithConversationID adds the conversation being processed to context.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationCtxKey{}, cleanID(id))
}

// ConversationIDFromContext extracts the conversation ID from context.
func ConversationIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(conversationCtxKey{}).(string)
	return s
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
