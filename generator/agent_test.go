package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentRequiresClient(t *testing.T) {
	_, err := NewAgent(nil, DefaultAgentOptions())
	require.Error(t, err)

	opts := DefaultAgentOptions()
	opts.RewriteRetries = -1
	_, err = NewAgent(&ScriptedLLM{}, opts)
	require.Error(t, err)
}

func TestInitialAccepted(t *testing.T) {
	llm := &ScriptedLLM{Replies: replies(initialJSON(t, FillerSummary))}
	a := testAgent(t, llm, nil)

	out, attempts, err := a.Initial(context.Background(), "Some article.")
	require.NoError(t, err)
	assert.Equal(t, FillerSummary, out.Summary)
	assert.Equal(t, 1, attempts)

	p := llm.Prompts()[0]
	assert.Equal(t, InitialSchemaName, p.Schema.Name)
	assert.Contains(t, p.Messages[0].Content, "Here is the Article: Some article.")
}

func TestRewriteLengthViolationRetriesOnce(t *testing.T) {
	llm := &ScriptedLLM{Replies: replies(
		rewriteJSON(t, "Too short.", []string{"Beta"}, nil),
		rewriteJSON(t, longSummary("Alpha"), []string{"Beta"}, nil),
	)}
	a := testAgent(t, llm, nil)

	out, attempts, err := a.Rewrite(context.Background(), RewriteRequest{Article: "article", Previous: FillerSummary})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, llm.Calls())
	assert.Equal(t, []string{"Beta"}, out.Missing)

	first, second := llm.Prompts()[0], llm.Prompts()[1]
	require.Len(t, second.Messages, len(first.Messages)+2)
	feedback := second.Messages[len(second.Messages)-2:]
	assert.Equal(t, RoleAssistant, feedback[0].Role)
	assert.Contains(t, feedback[0].Content, "Too short.")
	assert.Equal(t, RoleUser, feedback[1].Role)
	assert.Contains(t, feedback[1].Content, "too short")
}

func TestRewriteRetryBoundIsTerminal(t *testing.T) {
	short := rewriteJSON(t, "Too short.", []string{"Beta"}, nil)
	llm := &ScriptedLLM{Replies: replies(short, short, short)}
	a := testAgent(t, llm, func(o *AgentOptions) { o.RewriteRetries = 1 })

	_, attempts, err := a.Rewrite(context.Background(), RewriteRequest{Article: "article", Previous: FillerSummary})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, llm.Calls())
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrValidation)

	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StageRewrite, re.Stage)
	var le *LengthError
	assert.ErrorAs(t, err, &le)
}

func TestRewriteUndecodableResponseIsRetried(t *testing.T) {
	llm := &ScriptedLLM{Replies: replies(
		"I cannot answer in JSON",
		rewriteJSON(t, longSummary(), []string{"Beta"}, nil),
	)}
	a := testAgent(t, llm, nil)

	_, attempts, err := a.Rewrite(context.Background(), RewriteRequest{Article: "article", Previous: FillerSummary})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	last := llm.Prompts()[1].Messages
	assert.Contains(t, last[len(last)-1].Content, "not a valid JSON object")
}

func TestRateLimitedCallIsRetried(t *testing.T) {
	llm := &ScriptedLLM{Replies: []ScriptedReply{
		{Err: fmt.Errorf("openai: %w: 429", ErrRateLimited)},
		{Text: initialJSON(t, FillerSummary)},
	}}
	a := testAgent(t, llm, nil)
	var slept []time.Duration
	a.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, attempts, err := a.Initial(context.Background(), "article")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond}, slept)
}

func TestRateLimitBudgetExhausted(t *testing.T) {
	throttled := ScriptedReply{Err: ErrRateLimited}
	llm := &ScriptedLLM{Replies: []ScriptedReply{throttled, throttled, throttled}}
	a := testAgent(t, llm, func(o *AgentOptions) { o.TransportRetries = 1 })

	_, _, err := a.Initial(context.Background(), "article")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 2, llm.Calls())
}

func TestProviderErrorIsNotRetried(t *testing.T) {
	boom := errors.New("connection refused")
	llm := &ScriptedLLM{Replies: []ScriptedReply{{Err: boom}, {Text: initialJSON(t, FillerSummary)}}}
	a := testAgent(t, llm, nil)

	_, attempts, err := a.Initial(context.Background(), "article")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, llm.Calls())
}

func TestCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &ScriptedLLM{Replies: replies(initialJSON(t, FillerSummary))}
	a := testAgent(t, llm, nil)

	_, _, err := a.Initial(ctx, "article")
	assert.ErrorIs(t, err, context.Canceled)
}
