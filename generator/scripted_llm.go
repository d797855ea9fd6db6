package generator

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedReply is one canned answer of ScriptedLLM.
type ScriptedReply struct {
	Text string
	Err  error
}

// ScriptedLLM replays canned replies in order and records every prompt. It
// drives deterministic chains in the tests of this package and of its
// callers (server, CLI); it lives here rather than in an internal helper
// package because this package's own tests could not import such a package
// without a cycle.
type ScriptedLLM struct {
	mu      sync.Mutex
	Replies []ScriptedReply
	prompts []Prompt
}

func (s *ScriptedLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	if i >= len(s.Replies) {
		return "", fmt.Errorf("scripted: no reply for call %d", i+1)
	}
	r := s.Replies[i]
	return r.Text, r.Err
}

// Calls returns the number of Complete invocations so far.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns the prompts received so far.
func (s *ScriptedLLM) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Prompt, len(s.prompts))
	copy(out, s.prompts)
	return out
}
