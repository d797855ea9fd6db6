package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"chain_of_density/telemetry"
	"chain_of_density/textstats"
)

const DefaultSteps = 3

// Recorder captures the input and final output of each finished chain, e.g.
// as fine-tuning data.
type Recorder interface {
	Record(ctx context.Context, article Article, final Summary) error
}

// Densifier drives a chain: one initial summary, then a fixed number of
// rewrites, each fed the previous summary and its missing-entity list.
type Densifier struct {
	agent           *Agent
	steps           int
	track           bool
	maxArticleChars int
	recorder        Recorder
	logger          *slog.Logger
	now             func() time.Time
}

type Option func(*Densifier)

// WithSteps sets the default number of rewrites.
func WithSteps(n int) Option { return func(d *Densifier) { d.steps = n } }

// WithRecorder installs the capture collaborator.
func WithRecorder(r Recorder) Option { return func(d *Densifier) { d.recorder = r } }

func WithLogger(l *slog.Logger) Option { return func(d *Densifier) { d.logger = l } }

// WithEntityTracking toggles the client-side dropped-entity check.
func WithEntityTracking(on bool) Option { return func(d *Densifier) { d.track = on } }

// WithArticleLimit clips articles longer than n runes before generation.
func WithArticleLimit(n int) Option { return func(d *Densifier) { d.maxArticleChars = n } }

func NewDensifier(agent *Agent, opts ...Option) (*Densifier, error) {
	if agent == nil {
		return nil, errors.New("agent is required")
	}
	d := &Densifier{
		agent:  agent,
		steps:  DefaultSteps,
		track:  true,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.steps < 0 {
		return nil, fmt.Errorf("steps must be >= 0, got %d", d.steps)
	}
	return d, nil
}

// Steps is the default number of rewrites.
func (d *Densifier) Steps() int { return d.steps }

// Summarize runs a full chain over article. steps <= 0 uses the default.
// On failure the returned chain holds the steps accepted so far, its State is
// StateFailed, and the error is returned alongside it.
func (d *Densifier) Summarize(ctx context.Context, article Article, steps int) (*Chain, error) {
	if steps <= 0 {
		steps = d.steps
	}
	if strings.TrimSpace(article.Text) == "" {
		return nil, errors.New("article text is empty")
	}
	if article.ID == "" {
		article.ID = Digest(article.Text)
	}
	chain := &Chain{
		ID:        uuid.NewString(),
		Article:   Article{ID: article.ID, Reference: article.Reference},
		Planned:   steps,
		State:     StateInit,
		CreatedAt: d.now(),
	}
	log := d.logger.With("chain", chain.ID, "article", article.ID)

	fail := func(err error) (*Chain, error) {
		chain.State = StateFailed
		chain.Err = err.Error()
		chain.FinishedAt = d.now()
		telemetry.Chains.WithLabelValues("failed").Inc()
		log.Error("chain failed", "steps", chain.Len(), "error", err)
		return chain, err
	}

	text, err := ClipArticle(article.Text, d.maxArticleChars)
	if err != nil {
		return fail(err)
	}

	start := d.now()
	initial, attempts, err := d.agent.Initial(ctx, text)
	if err != nil {
		return fail(fmt.Errorf("initial summary: %w", err))
	}
	telemetry.StepDuration.WithLabelValues(StageInitial).Observe(d.now().Sub(start).Seconds())
	first := d.step(article.ID, initial.Summary, attempts)
	chain.append(first)
	log.Info("initial summary", "tokens", first.Metrics.Tokens, "entities", first.Metrics.Entities, "ratio", first.Metrics.Ratio, "attempts", attempts)

	chain.State = StateIterating
	var (
		include []string
		tracked []string
	)
	for i := 1; i <= steps; i++ {
		prev, _ := chain.Last()
		req := RewriteRequest{
			Article:  text,
			Previous: prev.Summary.Text,
			Include:  include,
		}
		if d.track {
			req.Tracked = tracked
		}
		start := d.now()
		rewritten, attempts, err := d.agent.Rewrite(ctx, req)
		if err != nil {
			return fail(fmt.Errorf("rewrite %d: %w", i, err))
		}
		telemetry.StepDuration.WithLabelValues(StageRewrite).Observe(d.now().Sub(start).Seconds())

		tracked = mergeTracked(tracked, include, rewritten.Summary)
		s := d.step(article.ID, rewritten.Summary, attempts)
		s.Missing = rewritten.Missing
		s.Absent = rewritten.Absent
		s.Entities = tracked
		chain.append(s)
		log.Info("densified summary", "iteration", i, "missing", strings.Join(rewritten.Missing, ","),
			"tokens", s.Metrics.Tokens, "entities", s.Metrics.Entities, "ratio", s.Metrics.Ratio, "attempts", attempts)
		log.Debug("summary text", "iteration", i, "text", rewritten.Summary)

		include = rewritten.Missing
	}

	chain.State = StateDone
	chain.FinishedAt = d.now()
	telemetry.Chains.WithLabelValues("done").Inc()

	if d.recorder != nil {
		last, _ := chain.Last()
		if err := d.recorder.Record(ctx, Article{ID: article.ID, Text: text, Reference: article.Reference}, last.Summary); err != nil {
			return chain, fmt.Errorf("record chain: %w", err)
		}
	}
	return chain, nil
}

func (d *Densifier) step(source, text string, attempts int) Step {
	m := textstats.Compute(text)
	telemetry.EntityDensity.Observe(m.Ratio)
	return Step{
		Summary:  Summary{Text: text, Tokens: m.Tokens, Source: source},
		Attempts: attempts,
		Metrics:  m,
	}
}

// mergeTracked adds the requested entities that made it into summary.
func mergeTracked(tracked, include []string, summary string) []string {
	out := append([]string(nil), tracked...)
	for _, e := range include {
		if textstats.Contains(summary, e) {
			out = append(out, e)
		}
	}
	return cleanEntities(out)
}
