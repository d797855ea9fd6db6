package generator

import (
	"encoding/json"
	"slices"
	"time"
)

// State of a chain run.
type State string

const (
	StateInit      State = "init"
	StateIterating State = "iterating"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Chain is the ordered, append-only record of a densification run. Step 0 is
// the initial summary; step i is the i-th rewrite.
type Chain struct {
	ID         string
	Article    Article
	Planned    int
	State      State
	Err        string
	CreatedAt  time.Time
	FinishedAt time.Time
	steps      []Step
}

// Steps returns a copy of the accepted steps.
func (c *Chain) Steps() []Step {
	out := make([]Step, len(c.steps))
	for i, s := range c.steps {
		out[i] = s.clone()
	}
	return out
}

// Len is the number of accepted steps.
func (c *Chain) Len() int { return len(c.steps) }

// Last returns the most recent step.
func (c *Chain) Last() (Step, bool) {
	if len(c.steps) == 0 {
		return Step{}, false
	}
	return c.steps[len(c.steps)-1].clone(), true
}

// Summaries returns the summary texts in chain order.
func (c *Chain) Summaries() []string {
	out := make([]string, 0, len(c.steps))
	for _, s := range c.steps {
		out = append(out, s.Summary.Text)
	}
	return out
}

func (c *Chain) append(s Step) {
	s.Index = len(c.steps)
	c.steps = append(c.steps, s.clone())
}

type chainJSON struct {
	ID         string    `json:"id"`
	Article    Article   `json:"article"`
	Planned    int       `json:"planned_steps"`
	State      State     `json:"state"`
	Err        string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Steps      []Step    `json:"steps"`
}

func (c *Chain) MarshalJSON() ([]byte, error) {
	steps := c.steps
	if steps == nil {
		steps = []Step{}
	}
	return json.Marshal(chainJSON{
		ID:         c.ID,
		Article:    c.Article,
		Planned:    c.Planned,
		State:      c.State,
		Err:        c.Err,
		CreatedAt:  c.CreatedAt,
		FinishedAt: c.FinishedAt,
		Steps:      steps,
	})
}

func (c *Chain) UnmarshalJSON(data []byte) error {
	var v chainJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Chain{
		ID:         v.ID,
		Article:    v.Article,
		Planned:    v.Planned,
		State:      v.State,
		Err:        v.Err,
		CreatedAt:  v.CreatedAt,
		FinishedAt: v.FinishedAt,
		steps:      slices.Clone(v.Steps),
	}
	return nil
}
