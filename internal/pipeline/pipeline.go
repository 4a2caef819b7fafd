// Package pipeline runs the staged mining pass: collect evidence, aggregate
// it into candidates, score and gate them, apply review decisions and write
// approved rules.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/config"
	"github.com/fyrsmithlabs/ruleminer/internal/conversation"
	"github.com/fyrsmithlabs/ruleminer/internal/decision"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
	"github.com/fyrsmithlabs/ruleminer/internal/logging"
	"github.com/fyrsmithlabs/ruleminer/internal/project"
	"github.com/fyrsmithlabs/ruleminer/internal/review"
	"github.com/fyrsmithlabs/ruleminer/internal/rulewriter"
	"github.com/fyrsmithlabs/ruleminer/internal/scoring"
	"github.com/fyrsmithlabs/ruleminer/internal/secrets"
	"github.com/fyrsmithlabs/ruleminer/internal/signal"
	"github.com/fyrsmithlabs/ruleminer/internal/store"
)

// TracerName is the instrumentation scope of pipeline spans.
const TracerName = "github.com/fyrsmithlabs/ruleminer/internal/pipeline"

// Stage names.
const (
	StageCollect   = "collect"
	StageAggregate = "aggregate"
	StageScore     = "score"
	StageDecide    = "decide"
	StageWrite     = "write"
	StageRecord    = "record"
)

// RunContext carries everything one run needs. It is created per run and
// never shared.
type RunContext struct {
	Config  *config.Config
	Now     func() time.Time
	RunID   string
	Summary *Summary
	Logger  *logging.Logger
	Tracer  trace.Tracer

	conversations []conversation.Conversation
	batch         evidence.Batch
}

// Pipeline wires the components for repeated runs against one store.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
	now     func() time.Time
	newID   func() string

	collector  *evidence.Collector
	aggregator *candidate.Aggregator
	scorer     *scoring.Scorer
	gate       *review.Gate
	ingestor   *decision.Ingestor
	writer     *rulewriter.Writer
	conflicts  candidate.ConflictPredicate

	resolver   evidence.ProjectResolver
	classifier evidence.Classifier
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracer sets the tracer for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock sets the clock used for timestamps and scoring.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDFunc sets the generator for run, evidence and candidate IDs.
func WithIDFunc(f func() string) Option {
	return func(p *Pipeline) { p.newID = f }
}

// WithResolver replaces the git-root project resolver.
func WithResolver(r evidence.ProjectResolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

// WithClassifier replaces the marker-file project classifier.
func WithClassifier(c evidence.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// New builds a Pipeline from a validated config.
func New(cfg *config.Config, st store.Store, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		store:      st,
		logger:     logging.NewNop(),
		tracer:     noop.NewTracerProvider().Tracer(TracerName),
		now:        time.Now,
		newID:      uuid.NewString,
		conflicts:  candidate.PolarityConflict{},
		resolver:   project.NewResolver(),
		classifier: project.MarkerClassifier{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics()
	}

	scrubber, err := newScrubber(cfg.Secrets)
	if err != nil {
		return nil, err
	}

	p.collector = evidence.NewCollector(
		signal.NewMatcher(),
		cfg.Pipeline.ContextWindow,
		evidence.WithResolver(p.resolver),
		evidence.WithClassifier(p.classifier),
		evidence.WithScrubber(scrubber),
		evidence.WithWorkers(cfg.Transcripts.Workers),
		evidence.WithIDFunc(p.newID),
	)
	p.aggregator = candidate.NewAggregator(
		cfg.Pipeline.GeneralizationThreshold,
		candidate.WithClock(p.now),
		candidate.WithIDFunc(p.newID),
	)
	p.scorer = scoring.New(cfg.RecencyWindow())
	p.gate = review.NewGate(review.Config{
		AutoApproveThreshold: cfg.Pipeline.AutoApproveThreshold,
		ReviewThreshold:      cfg.Pipeline.ReviewThreshold,
		AutoApproveEnabled:   cfg.Pipeline.AutoApproveEnabled,
	})
	p.ingestor = decision.NewIngestor(cfg.Review.Dir, cfg.Review.Archive)

	p.writer, err = rulewriter.New(rulewriter.Config{
		GlobalDocument:  cfg.Writer.GlobalDocument,
		ProjectDocument: cfg.Writer.ProjectDocument,
		RulesDir:        cfg.Writer.RulesDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rule writer: %w", err)
	}
	return p, nil
}

func newScrubber(sc config.SecretsConfig) (secrets.Scrubber, error) {
	if !sc.Enabled {
		return secrets.NoopScrubber{}, nil
	}
	cfg := secrets.DefaultConfig()
	if err := cfg.LoadAllowList(sc.AllowlistFile); err != nil {
		return nil, fmt.Errorf("failed to load secrets allowlist: %w", err)
	}
	s, err := secrets.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets scrubber: %w", err)
	}
	return s, nil
}

// Metrics returns the pipeline's metrics.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

type stage struct {
	name string
	fn   func(context.Context, *RunContext) error
}

// Run performs one full pass over convs. The returned Summary is never nil;
// on error it describes the stages that completed. The run record is
// written even when a stage fails or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, convs []conversation.Conversation) (*Summary, error) {
	rc := &RunContext{
		Config:        p.cfg,
		Now:           p.now,
		RunID:         p.newID(),
		Summary:       newSummary(),
		Logger:        p.logger,
		Tracer:        p.tracer,
		conversations: convs,
	}
	rc.Summary.RunID = rc.RunID
	rc.Summary.Conversations = len(convs)
	started := rc.Now()

	ctx = logging.WithRunID(ctx, rc.RunID)
	ctx, span := rc.Tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", rc.RunID),
		attribute.Int("conversations", len(convs)),
	))
	defer span.End()

	rc.Logger.Info(ctx, "run started", zap.Int("conversations", len(convs)))

	stages := []stage{
		{StageCollect, p.collect},
		{StageAggregate, p.aggregate},
		{StageScore, p.scoreAndGate},
		{StageDecide, p.decide},
		{StageWrite, p.write},
	}

	var runErr error
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := p.runStage(ctx, rc, st); err != nil {
			runErr = fmt.Errorf("stage %s: %w", st.name, err)
			break
		}
	}

	rc.Summary.Status = statusFor(runErr)
	finished := rc.Now()

	recordCtx := context.WithoutCancel(ctx)
	if err := p.runStage(recordCtx, rc, stage{StageRecord, func(ctx context.Context, rc *RunContext) error {
		return p.recordRun(ctx, rc, started, finished)
	}}); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("stage %s: %w", StageRecord, err))
	}

	p.metrics.record(rc.Summary, finished)
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		rc.Logger.Warn(ctx, "metrics textfile not written", zap.Error(err))
	}

	span.SetAttributes(
		attribute.String("run.status", rc.Summary.Status),
		attribute.Int("evidence.new", rc.Summary.NewEvidence),
		attribute.Int("errors", len(rc.Summary.Errors)),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		rc.Logger.Error(ctx, "run failed", zap.String("status", rc.Summary.Status), zap.Error(runErr))
		return rc.Summary, runErr
	}

	rc.Logger.Info(ctx, "run completed",
		zap.Int("evidence.new", rc.Summary.NewEvidence),
		zap.Int("candidates.created", rc.Summary.CandidatesCreated),
		zap.Int("candidates.updated", rc.Summary.CandidatesUpdated),
		zap.Int("auto_approved", rc.Summary.AutoApproved),
		zap.Int("approved", rc.Summary.ApprovedByReview),
		zap.Int("documents.written", rc.Summary.DocumentsWritten),
		zap.Int("skipped", rc.Summary.SkippedTotal()),
		zap.Int("errors", len(rc.Summary.Errors)),
	)
	return rc.Summary, nil
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func (p *Pipeline) runStage(ctx context.Context, rc *RunContext, st stage) error {
	ctx = logging.WithStage(ctx, st.name)
	ctx, span := rc.Tracer.Start(ctx, "stage."+st.name, trace.WithAttributes(attribute.String("stage", st.name)))
	defer span.End()

	start := time.Now()
	err := st.fn(ctx, rc)
	elapsed := time.Since(start)
	p.metrics.observeStage(st.name, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	rc.Logger.Debug(ctx, "stage completed", zap.Duration("duration", elapsed))
	return nil
}

// collect fans out over conversations. It touches no store state.
func (p *Pipeline) collect(ctx context.Context, rc *RunContext) error {
	batch, err := p.collector.CollectAll(ctx, rc.conversations)
	if err != nil {
		return fmt.Errorf("failed to collect evidence: %w", err)
	}
	rc.batch = batch
	rc.Summary.PositiveAcks += batch.PositiveAcks
	for _, s := range batch.Skips {
		rc.Summary.skip(string(s.Reason))
		rc.Logger.Debug(logging.WithConversationID(ctx, s.ConversationID), "correction skipped",
			zap.String("reason", string(s.Reason)),
			zap.String("utterance.id", s.UtteranceID),
		)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("evidence.collected", len(batch.Evidence)),
		attribute.Int("skips", len(batch.Skips)),
	)
	rc.Logger.Info(ctx, "evidence collected",
		zap.Int("evidence", len(batch.Evidence)),
		zap.Int("skipped", len(batch.Skips)),
		zap.Int("positive_acks", batch.PositiveAcks),
	)
	return nil
}

// aggregate stores new evidence and attaches it to candidates in one
// transaction.
func (p *Pipeline) aggregate(ctx context.Context, rc *RunContext) error {
	var delta *Summary
	err := p.store.Update(ctx, func(tx store.Tx) error {
		delta = newSummary()
		created := make(map[string]bool)
		updated := make(map[string]bool)

		for _, ev := range rc.batch.Evidence {
			if err := ctx.Err(); err != nil {
				return err
			}
			isNew, err := tx.PutEvidence(ctx, ev)
			if err != nil {
				return fmt.Errorf("failed to store evidence %s: %w", ev.ID, err)
			}
			if !isNew {
				delta.skip(SkipDuplicateEvidence)
				rc.Logger.Debug(ctx, "duplicate evidence skipped", zap.String("evidence.key", ev.Key()))
				continue
			}
			delta.NewEvidence++

			out, err := p.aggregator.Add(ctx, tx, ev)
			if errors.Is(err, candidate.ErrEmptySignature) {
				delta.skip(SkipEmptySignature)
				rc.Logger.Debug(ctx, "evidence without signature skipped", zap.String("evidence.id", ev.ID))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to aggregate evidence %s: %w", ev.ID, err)
			}
			for _, id := range out.Created {
				created[id] = true
			}
			for _, id := range out.Updated {
				updated[id] = true
			}
		}

		delta.CandidatesCreated = len(created)
		for id := range updated {
			if !created[id] {
				delta.CandidatesUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	rc.Summary.merge(delta)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("evidence.new", delta.NewEvidence),
		attribute.Int("candidates.created", delta.CandidatesCreated),
		attribute.Int("candidates.updated", delta.CandidatesUpdated),
	)
	return nil
}

// scoreAndGate recomputes conflicts and confidence for every live candidate
// and moves it through the gate.
func (p *Pipeline) scoreAndGate(ctx context.Context, rc *RunContext) error {
	var delta *Summary
	err := p.store.Update(ctx, func(tx store.Tx) error {
		delta = newSummary()
		now := rc.Now()

		all, err := tx.Candidates(ctx, candidate.Filter{})
		if err != nil {
			return fmt.Errorf("failed to load candidates: %w", err)
		}
		dirty := make(map[int]bool)
		for _, i := range candidate.DetectConflicts(all, p.conflicts) {
			dirty[i] = true
		}

		for i := range all {
			if err := ctx.Err(); err != nil {
				return err
			}
			c := &all[i]
			if c.State.Terminal() {
				continue
			}

			evs, err := tx.Evidence(ctx, c.EvidenceIDs)
			if errors.Is(err, store.ErrNotFound) {
				delta.fail(StageScore, c.ID, err)
				rc.Logger.Error(ctx, "candidate evidence missing", zap.String("candidate.id", c.ID), zap.Error(err))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to load evidence for %s: %w", c.ID, err)
			}
			in, err := scoring.InputFor(*c, evs, now)
			if err != nil {
				delta.fail(StageScore, c.ID, err)
				rc.Logger.Error(ctx, "candidate not scored", zap.String("candidate.id", c.ID), zap.Error(err))
				continue
			}

			if score := p.scorer.Score(in); score != c.Confidence {
				c.Confidence = score
				dirty[i] = true
			}
			c.StrongestSignal = in.Strongest

			tr := p.gate.Evaluate(c, now)
			if tr.Changed() {
				dirty[i] = true
				switch {
				case tr.Auto:
					delta.AutoApproved++
				case tr.To == candidate.StatePendingReview:
					delta.Pending++
				case tr.To == candidate.StateNeedsEvidence:
					delta.NeedsEvidence++
				}
				rc.Logger.Info(ctx, "candidate transitioned",
					zap.String("candidate.id", c.ID),
					zap.String("from", string(tr.From)),
					zap.String("to", string(tr.To)),
					zap.Float64("confidence", c.Confidence),
				)
			}

			if dirty[i] {
				if err := tx.PutCandidate(ctx, *c); err != nil {
					return fmt.Errorf("failed to save candidate %s: %w", c.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	rc.Summary.merge(delta)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("candidates.auto_approved", delta.AutoApproved),
		attribute.Int("candidates.pending", delta.Pending),
		attribute.Int("candidates.needs_evidence", delta.NeedsEvidence),
	)
	return nil
}

// decide applies reviewer decisions from the artifact directory and then
// archives the settled artifacts.
func (p *Pipeline) decide(ctx context.Context, rc *RunContext) error {
	results, err := p.ingestor.Ingest(ctx)
	if err != nil {
		return fmt.Errorf("failed to ingest review artifacts: %w", err)
	}

	var delta *Summary
	err = p.store.Update(ctx, func(tx store.Tx) error {
		delta = newSummary()
		now := rc.Now()

		for _, res := range results {
			for _, s := range res.Skips {
				delta.skip(string(s.Reason))
				rc.Logger.Debug(ctx, "review section skipped",
					zap.String("reason", string(s.Reason)),
					zap.String("source", s.Source),
					zap.String("section", s.Section),
				)
			}
			for _, d := range res.Decisions {
				if err := ctx.Err(); err != nil {
					return err
				}
				c, err := tx.Candidate(ctx, d.CandidateID)
				if errors.Is(err, store.ErrNotFound) {
					delta.skip(SkipUnknownCandidate)
					rc.Logger.Warn(ctx, "decision for unknown candidate", zap.String("candidate.id", d.CandidateID))
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to load candidate %s: %w", d.CandidateID, err)
				}

				if err := p.gate.Apply(&c, d, now); err != nil {
					reason, ok := decisionSkipReason(err)
					if !ok {
						return fmt.Errorf("failed to apply decision for %s: %w", c.ID, err)
					}
					delta.skip(reason)
					rc.Logger.Debug(ctx, "decision skipped",
						zap.String("candidate.id", c.ID),
						zap.String("reason", reason),
						zap.Error(err),
					)
					continue
				}
				if err := tx.PutCandidate(ctx, c); err != nil {
					return fmt.Errorf("failed to save candidate %s: %w", c.ID, err)
				}

				switch c.State {
				case candidate.StateApproved:
					delta.ApprovedByReview++
				case candidate.StateRejected:
					delta.Rejected++
				case candidate.StateNeedsEvidence:
					delta.NeedsEvidence++
				}
				rc.Logger.Info(ctx, "decision applied",
					zap.String("candidate.id", c.ID),
					zap.String("kind", string(d.Kind)),
					zap.String("state", string(c.State)),
				)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	archived, err := p.ingestor.Archive(results)
	delta.ArtifactsArchived = len(archived)
	if err != nil {
		delta.fail(StageDecide, p.ingestor.Dir(), err)
		rc.Logger.Error(ctx, "review artifacts not archived", zap.Error(err))
	}
	rc.Summary.merge(delta)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("artifacts", len(results)),
		attribute.Int("candidates.approved", delta.ApprovedByReview),
		attribute.Int("candidates.rejected", delta.Rejected),
	)
	return nil
}

func decisionSkipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, review.ErrAlreadyApplied):
		return SkipAlreadyApplied, true
	case errors.Is(err, review.ErrStaleDecision):
		return SkipStale, true
	case errors.Is(err, review.ErrTerminal):
		return SkipTerminal, true
	case errors.Is(err, review.ErrNotReviewable):
		return SkipNotReviewable, true
	case errors.Is(err, review.ErrInvalidDecision):
		return SkipInvalidDecision, true
	}
	return "", false
}

// write merges every approved candidate into its managed region. Documents
// fail independently.
func (p *Pipeline) write(ctx context.Context, rc *RunContext) error {
	var approved []candidate.Candidate
	err := p.store.View(ctx, func(tx store.Tx) error {
		var err error
		approved, err = tx.Candidates(ctx, candidate.Filter{States: []candidate.State{candidate.StateApproved}})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to load approved candidates: %w", err)
	}

	results := p.writer.Write(ctx, p.writer.Plan(approved))
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, res := range results {
		switch res.Status {
		case rulewriter.StatusWritten:
			rc.Summary.DocumentsWritten++
			rc.Logger.Info(ctx, "rule document written", zap.String("path", res.Path), zap.Int("regions", res.Regions))
		case rulewriter.StatusUnchanged:
			rc.Summary.DocumentsUnchanged++
			rc.Summary.skip(SkipUnchanged)
			rc.Logger.Debug(ctx, "rule document unchanged", zap.String("path", res.Path))
		case rulewriter.StatusFailed:
			rc.Summary.fail(StageWrite, res.Path, res.Err)
			rc.Logger.Error(ctx, "rule document not written", zap.String("path", res.Path), zap.Error(res.Err))
		}
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("candidates.approved", len(approved)),
		attribute.Int("documents", len(results)),
	)
	return nil
}

func (p *Pipeline) recordRun(ctx context.Context, rc *RunContext, started, finished time.Time) error {
	summary, err := json.Marshal(rc.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	run := store.Run{
		ID:         rc.RunID,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     rc.Summary.Status,
		Summary:    summary,
	}
	return p.store.Update(ctx, func(tx store.Tx) error {
		return tx.PutRun(ctx, run)
	})
}
