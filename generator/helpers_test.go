package generator

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// longSummary is FillerSummary followed by the given entities, well above
// the minimum token count.
func longSummary(entities ...string) string {
	if len(entities) == 0 {
		return FillerSummary
	}
	return FillerSummary + " It names " + strings.Join(entities, " and ") + "."
}

func initialJSON(t *testing.T, summary string) string {
	t.Helper()
	b, err := json.Marshal(InitialSummary{Summary: summary})
	require.NoError(t, err)
	return string(b)
}

func rewriteJSON(t *testing.T, summary string, missing, absent []string) string {
	t.Helper()
	if absent == nil {
		absent = []string{}
	}
	b, err := json.Marshal(RewrittenSummary{Summary: summary, Missing: missing, Absent: absent})
	require.NoError(t, err)
	return string(b)
}

func replies(texts ...string) []ScriptedReply {
	out := make([]ScriptedReply, len(texts))
	for i, s := range texts {
		out[i] = ScriptedReply{Text: s}
	}
	return out
}

func testAgent(t *testing.T, llm LLMClient, mutate func(*AgentOptions)) *Agent {
	t.Helper()
	opts := DefaultAgentOptions()
	opts.TransportBackoff = time.Millisecond
	opts.Logger = discardLogger()
	if mutate != nil {
		mutate(&opts)
	}
	a, err := NewAgent(llm, opts)
	require.NoError(t, err)
	return a
}
