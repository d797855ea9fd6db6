package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"chain_of_density/textstats"
)

// FillerSummary is the deliberately vague first summary MockLLM returns.
const FillerSummary = "This article discusses a topic in considerable detail, offering a broad and somewhat general overview of the subject matter that it presents to readers. " +
	"It touches on several themes and ideas, describing various aspects of the situation without going into many specifics about them. " +
	"The discussion covers background, context, and a number of related points that the author considers relevant. " +
	"Overall, the article provides a general summary of events and their possible implications, leaving many particulars for readers to explore further on their own."

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// 改写时追加要求的实体，并从原文中挑出最多两个新实体。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	article, previous, include := promptParts(prompt)
	switch prompt.Schema.Name {
	case InitialSchemaName:
		return marshalString(InitialSummary{Summary: FillerSummary})
	case RewriteSchemaName:
		summary := previous
		if len(include) > 0 {
			summary = strings.TrimSpace(summary) + " It also covers " + strings.Join(include, ", ") + "."
		}
		missing := pickMissing(article, summary, 2)
		return marshalString(RewrittenSummary{Summary: summary, Missing: missing, Absent: []string{}})
	default:
		return "", fmt.Errorf("mock: unknown schema %q", prompt.Schema.Name)
	}
}

func promptParts(p Prompt) (article, previous string, include []string) {
	for _, m := range p.Messages {
		if m.Role != RoleUser {
			continue
		}
		if s, ok := strings.CutPrefix(m.Content, articlePrefix); ok {
			article = s
		} else if s, ok := strings.CutPrefix(m.Content, previousPrefix); ok {
			previous = s
		} else if s, ok := strings.CutPrefix(m.Content, includePrefix); ok {
			include = strings.Split(s, ",")
		}
	}
	return article, previous, include
}

// pickMissing returns up to n article entities absent from summary. Falls
// back to capitalized words when the tagger finds nothing.
func pickMissing(article, summary string, n int) []string {
	candidates := textstats.Entities(article)
	candidates = append(candidates, capitalized(article)...)
	var out []string
	for _, c := range cleanEntities(candidates) {
		if len(out) == n {
			break
		}
		if !textstats.Contains(summary, c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		out = []string{"further details"}
	}
	return out
}

func capitalized(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len([]rune(w)) < 3 {
			continue
		}
		if r := []rune(w)[0]; unicode.IsUpper(r) {
			out = append(out, w)
		}
	}
	return out
}

func marshalString(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
