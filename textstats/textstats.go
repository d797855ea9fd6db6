// Package textstats counts tokens and named entities in summary text.
package textstats

import (
	"math"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Metrics is the density snapshot of one summary.
type Metrics struct {
	Tokens   int     `json:"tokens"`
	Entities int     `json:"entities"`
	Ratio    float64 `json:"entity_token_ratio"`
}

// Tokens returns the word tokens of text, punctuation split off the way a
// treebank tokenizer does it.
func Tokens(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(text)
	}
	toks := doc.Tokens()
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Text)
	}
	return out
}

// CountTokens is len(Tokens(text)).
func CountTokens(text string) int {
	return len(Tokens(text))
}

// Entities returns the distinct named entities found in text, in order of
// first appearance.
func Entities(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range doc.Entities() {
		key := strings.ToLower(strings.TrimSpace(e.Text))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(e.Text))
	}
	return out
}

// Compute returns token count, entity count and their ratio rounded to four
// decimals.
func Compute(text string) Metrics {
	m := Metrics{
		Tokens:   CountTokens(text),
		Entities: len(Entities(text)),
	}
	m.Ratio = Ratio(m.Entities, m.Tokens)
	return m
}

// Ratio is entities/tokens rounded to four decimals; zero when tokens is zero.
func Ratio(entities, tokens int) float64 {
	if tokens <= 0 {
		return 0
	}
	return math.Round(float64(entities)/float64(tokens)*1e4) / 1e4
}

// Contains reports whether entity occurs in text, ignoring case and runs of
// whitespace.
func Contains(text, entity string) bool {
	e := normalize(entity)
	if e == "" {
		return true
	}
	return strings.Contains(normalize(text), e)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
