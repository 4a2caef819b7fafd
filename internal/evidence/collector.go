package evidence

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/ruleminer/internal/conversation"
	"github.com/fyrsmithlabs/ruleminer/internal/secrets"
	"github.com/fyrsmithlabs/ruleminer/internal/signal"
)

const maxExcerptRunes = 500

// ProjectResolver maps a workspace path to a project key.
type ProjectResolver interface {
	Resolve(workspacePath string) string
}

// Classifier labels a workspace.
type Classifier interface {
	Classify(workspacePath string) string
}

// Collector extracts Evidence from conversations.
type Collector struct {
	matcher    *signal.Matcher
	window     int
	resolver   ProjectResolver
	classifier Classifier
	scrubber   secrets.Scrubber
	workers    int
	newID      func() string
}

// Option configures a Collector.
type Option func(*Collector)

// WithResolver sets the project resolver. Without one the cleaned workspace
// path is used as the project key.
func WithResolver(r ProjectResolver) Option {
	return func(c *Collector) { c.resolver = r }
}

// WithClassifier sets the workspace classifier.
func WithClassifier(cl Classifier) Option {
	return func(c *Collector) { c.classifier = cl }
}

// WithScrubber sets the scrubber applied to all stored text.
func WithScrubber(s secrets.Scrubber) Option {
	return func(c *Collector) { c.scrubber = s }
}

// WithWorkers bounds concurrency in CollectAll.
func WithWorkers(n int) Option {
	return func(c *Collector) { c.workers = n }
}

// WithIDFunc overrides evidence ID generation.
func WithIDFunc(f func() string) Option {
	return func(c *Collector) { c.newID = f }
}

// NewCollector creates a Collector. window is the number of utterances kept
// before the target and after the trigger.
func NewCollector(matcher *signal.Matcher, window int, opts ...Option) *Collector {
	if matcher == nil {
		matcher = signal.NewMatcher()
	}
	if window < 0 {
		window = 0
	}
	c := &Collector{
		matcher:  matcher,
		window:   window,
		scrubber: secrets.NoopScrubber{},
		workers:  4,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect scans one conversation. It never fails on content; the error is
// only non-nil when ctx is done.
func (c *Collector) Collect(ctx context.Context, conv conversation.Conversation) (Batch, error) {
	var batch Batch
	if err := ctx.Err(); err != nil {
		return batch, err
	}

	project, projectType := c.describe(conv.WorkspacePath)
	accepted := make(map[string]bool)

	for i, u := range conv.Utterances {
		if u.Role != conversation.RoleHuman {
			continue
		}
		res := c.matcher.Classify(u.Text)

		switch res.Kind {
		case signal.KindPositive:
			if i > 0 && conv.Utterances[i-1].Role == conversation.RoleAssistant {
				accepted[conv.Utterances[i-1].ID] = true
				batch.PositiveAcks++
			}
			continue
		case signal.KindCorrection:
		default:
			continue
		}

		skip := Skip{ConversationID: conv.ID, UtteranceID: u.ID}
		t := targetIndex(conv, i)
		if t < 0 {
			skip.Reason = SkipNoTarget
			batch.Skips = append(batch.Skips, skip)
			continue
		}
		target := conv.Utterances[t]
		if accepted[target.ID] {
			skip.Reason = SkipPositiveAck
			batch.Skips = append(batch.Skips, skip)
			continue
		}
		rule := c.scrub(res.Rule)
		if rule == "" {
			skip.Reason = SkipEmptyRule
			batch.Skips = append(batch.Skips, skip)
			continue
		}

		ts := u.Timestamp
		if ts.IsZero() {
			ts = target.Timestamp
		}

		batch.Evidence = append(batch.Evidence, Evidence{
			ID:             c.newID(),
			ConversationID: conv.ID,
			TriggerID:      u.ID,
			TriggerIndex:   i,
			TargetID:       target.ID,
			TargetIndex:    t,
			TriggerText:    c.scrub(excerpt(u.Text)),
			TargetText:     c.scrub(excerpt(target.Text)),
			WorkspacePath:  conv.WorkspacePath,
			Project:        project,
			ProjectType:    projectType,
			FileExt:        conversation.FileExtension(target),
			Category:       res.Category,
			Pattern:        res.Pattern,
			RuleText:       rule,
			Timestamp:      ts,
			ContextBefore:  c.contextWindow(conv.Utterances, t-c.window, t),
			ContextAfter:   c.contextWindow(conv.Utterances, i+1, i+1+c.window),
		})
	}
	return batch, nil
}

// CollectAll scans conversations concurrently and returns their evidence in
// input order.
func (c *Collector) CollectAll(ctx context.Context, convs []conversation.Conversation) (Batch, error) {
	batches := make([]Batch, len(convs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.workers, 1))
	for i, conv := range convs {
		g.Go(func() error {
			b, err := c.Collect(gctx, conv)
			if err != nil {
				return fmt.Errorf("conversation %s: %w", conv.ID, err)
			}
			batches[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	var out Batch
	for _, b := range batches {
		out.merge(b)
	}
	return out, nil
}

// targetIndex finds the assistant utterance a correction at i responds to:
// the reply-link target when it is an earlier assistant turn, else the
// nearest preceding assistant turn. It returns -1 when there is none.
func targetIndex(conv conversation.Conversation, i int) int {
	u := conv.Utterances[i]
	if j := conv.Index(u.ReplyTo); j >= 0 && j < i && conv.Utterances[j].Role == conversation.RoleAssistant {
		return j
	}
	for j := i - 1; j >= 0; j-- {
		if conv.Utterances[j].Role == conversation.RoleAssistant {
			return j
		}
	}
	return -1
}

func (c *Collector) describe(workspace string) (project, projectType string) {
	if workspace == "" {
		return "", ""
	}
	project = filepath.Clean(workspace)
	if c.resolver != nil {
		project = c.resolver.Resolve(workspace)
	}
	if c.classifier != nil {
		projectType = c.classifier.Classify(workspace)
	}
	return project, projectType
}

func (c *Collector) contextWindow(us []conversation.Utterance, from, to int) []string {
	from = max(from, 0)
	to = min(to, len(us))
	if from >= to {
		return nil
	}
	out := make([]string, 0, to-from)
	for _, u := range us[from:to] {
		out = append(out, c.scrub(string(u.Role)+": "+excerpt(u.Text)))
	}
	return out
}

func (c *Collector) scrub(s string) string {
	return c.scrubber.Scrub(s).Scrubbed
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxExcerptRunes {
		return s
	}
	return string(r[:maxExcerptRunes]) + "…"
}
