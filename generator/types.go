package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"chain_of_density/textstats"
)

// InitialSummary is the response schema of the first, verbose summary.
type InitialSummary struct {
	Summary string `json:"summary" validate:"mintokens"`
}

// RewrittenSummary is the response schema of a densification step.
// Field order is the order the checks are reported in.
type RewrittenSummary struct {
	Summary string   `json:"summary" validate:"mintokens"`
	Missing []string `json:"missing" validate:"min=1,max=3"`
	Absent  []string `json:"absent" validate:"max=0"`
}

// normalize trims entity names and drops blanks and duplicates.
func (r *RewrittenSummary) normalize() {
	r.Summary = strings.TrimSpace(r.Summary)
	r.Missing = cleanEntities(r.Missing)
	r.Absent = cleanEntities(r.Absent)
}

// Article is one source document.
type Article struct {
	ID        string `json:"id"`
	Text      string `json:"text,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// NewArticle builds an Article whose ID is derived from its text.
func NewArticle(text string) Article {
	return Article{ID: Digest(text), Text: text}
}

// Digest is the content address used for article IDs and store lookups.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:12])
}

// Summary is one summary text of a chain.
type Summary struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
	Source string `json:"source"`
}

// Step is one accepted link of a chain. Step 0 is the initial summary.
type Step struct {
	Index    int               `json:"index"`
	Summary  Summary           `json:"summary"`
	Missing  []string          `json:"missing,omitempty"`
	Absent   []string          `json:"absent,omitempty"`
	Entities []string          `json:"entities,omitempty"`
	Attempts int               `json:"attempts"`
	Metrics  textstats.Metrics `json:"metrics"`
}

func (s Step) clone() Step {
	s.Missing = slices.Clone(s.Missing)
	s.Absent = slices.Clone(s.Absent)
	s.Entities = slices.Clone(s.Entities)
	return s
}

func cleanEntities(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, e := range in {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
