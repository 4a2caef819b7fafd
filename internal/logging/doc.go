// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stderr output plus an optional OpenTelemetry log bridge
//   - context fields for the active span, run, stage and conversation
//   - redaction of sensitive keys and token-shaped values
//   - level-aware sampling where errors are never sampled
//
// # Usage
//
//	cfg, err := logging.FromConfig(appCfg.Logging, false)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithStage(ctx, "aggregate")
//	logger.Info(ctx, "candidate created", zap.String("candidate.id", id))
//
// Output includes the correlation fields:
//
//	{"level":"info","msg":"candidate created","run.id":"...","run.stage":"aggregate","candidate.id":"..."}
//
// # Testing
//
//	logger := logging.NewTestLogger()
//	// ... exercise code ...
//	logger.AssertLogged(t, zapcore.InfoLevel, "candidate created")
//	logger.AssertField(t, "candidate created", "candidate.id", id)
package logging
