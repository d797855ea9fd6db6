package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chain_of_density/telemetry"
)

const (
	StageInitial = "initial"
	StageRewrite = "rewrite"
)

// AgentOptions tunes generation and the retry budgets.
type AgentOptions struct {
	MinTokens   int
	TargetWords int
	// MaxTokens caps the completion length of rewrite calls.
	MaxTokens int
	// InitialRetries and RewriteRetries are the corrective retries allowed
	// after a rejected response; attempts = retries + 1.
	InitialRetries int
	RewriteRetries int
	RetryBackoff   time.Duration
	// TransportRetries bounds retries of rate-limited calls, spaced by
	// TransportBackoff. Other provider errors are not retried.
	TransportRetries  int
	TransportBackoff  time.Duration
	RequestsPerMinute int
	Logger            *slog.Logger
}

// DefaultAgentOptions returns the default generation budgets.
func DefaultAgentOptions() AgentOptions {
	return AgentOptions{
		MinTokens:        DefaultMinTokens,
		TargetWords:      DefaultTargetWords,
		MaxTokens:        1000,
		InitialRetries:   2,
		RewriteRetries:   3,
		TransportRetries: 2,
		TransportBackoff: 60 * time.Second,
	}
}

// Agent 负责调用 LLMClient 生成摘要，校验失败时带着错误信息重试。
type Agent struct {
	llm       LLMClient
	validator *Validator
	limiter   *rate.Limiter
	opts      AgentOptions
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
}

func NewAgent(llm LLMClient, opts AgentOptions) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if opts.InitialRetries < 0 || opts.RewriteRetries < 0 || opts.TransportRetries < 0 {
		return nil, errors.New("retry budgets must be >= 0")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		llm:       llm,
		validator: NewValidator(opts.MinTokens, opts.TargetWords),
		opts:      opts,
		logger:    logger,
		sleep:     sleepWithCtx,
	}
	if opts.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return a, nil
}

// Validator exposes the checks the agent applies.
func (a *Agent) Validator() *Validator { return a.validator }

// Initial generates the first verbose summary. It returns the accepted
// response and the number of calls it took.
func (a *Agent) Initial(ctx context.Context, article string) (InitialSummary, int, error) {
	p := BuildInitialPrompt(article, a.opts.TargetWords)
	return structured(ctx, a, StageInitial, p, a.opts.InitialRetries, a.validator.CheckInitial)
}

// RewriteRequest is the input of one densification step.
type RewriteRequest struct {
	Article  string
	Previous string
	// Include is the previous step's missing-entity list.
	Include []string
	// Tracked lists entities known to be in Previous; dropping any of them
	// fails the absent check.
	Tracked []string
}

// Rewrite generates a denser summary of identical length.
func (a *Agent) Rewrite(ctx context.Context, req RewriteRequest) (RewrittenSummary, int, error) {
	p := BuildRewritePrompt(req.Article, req.Previous, req.Include, a.opts.TargetWords, a.opts.MaxTokens)
	check := func(r *RewrittenSummary) error { return a.validator.CheckRewrite(r, req.Tracked) }
	return structured(ctx, a, StageRewrite, p, a.opts.RewriteRetries, check)
}

// structured runs one schema-bound call: generate, decode, validate, and on a
// rejected response append the correction to the conversation and try again,
// at most retries more times.
func structured[T any](ctx context.Context, a *Agent, stage string, p Prompt, retries int, check func(*T) error) (T, int, error) {
	var zero T
	attempts := 0
	throttled := 0
	rejected := 0
	var lastErr error
	for {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return zero, attempts, err
			}
		}
		attempts++
		raw, err := a.llm.Complete(ctx, p)
		if err != nil {
			telemetry.GenerationAttempts.WithLabelValues(stage, "error").Inc()
			if errors.Is(err, ErrRateLimited) && throttled < a.opts.TransportRetries && ctx.Err() == nil {
				throttled++
				a.logger.Warn("rate limited, backing off", "stage", stage, "attempt", attempts, "backoff", a.opts.TransportBackoff)
				if serr := a.sleep(ctx, a.opts.TransportBackoff); serr != nil {
					return zero, attempts, serr
				}
				continue
			}
			return zero, attempts, fmt.Errorf("%s: generate: %w", stage, err)
		}

		var out T
		verr := decode(raw, &out)
		if verr == nil {
			verr = check(&out)
		}
		if verr == nil {
			telemetry.GenerationAttempts.WithLabelValues(stage, "ok").Inc()
			return out, attempts, nil
		}

		telemetry.GenerationAttempts.WithLabelValues(stage, "invalid").Inc()
		kinds := failureKinds(verr)
		for _, k := range kinds {
			telemetry.ValidationFailures.WithLabelValues(k).Inc()
		}
		lastErr = verr
		rejected++
		a.logger.Info("response rejected", "stage", stage, "attempt", attempts, "kinds", strings.Join(kinds, ","), "error", verr)
		if rejected > retries {
			return zero, attempts, &RetryError{Stage: stage, Attempts: attempts, Err: lastErr}
		}
		p = p.WithCorrection(raw, verr)
		if serr := a.sleep(ctx, a.opts.RetryBackoff); serr != nil {
			return zero, attempts, serr
		}
	}
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
