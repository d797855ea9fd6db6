// Package publisher turns finished chains into outputs: fine-tuning JSONL
// records and Markdown/HTML reports.
package publisher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"chain_of_density/generator"
)

// RenderMarkdown renders a chain as a Markdown report: one section per step
// with its density metrics and entity lists.
func RenderMarkdown(c *generator.Chain) string {
	var sb strings.Builder
	sb.WriteString("# Chain of Density\n\n")
	sb.WriteString(fmt.Sprintf("- Chain: `%s`\n", c.ID))
	sb.WriteString(fmt.Sprintf("- Article: `%s`\n", c.Article.ID))
	sb.WriteString(fmt.Sprintf("- State: %s (%d of %d rewrites)\n", c.State, max(c.Len()-1, 0), c.Planned))
	if c.Err != "" {
		sb.WriteString(fmt.Sprintf("- Error: %s\n", c.Err))
	}
	sb.WriteString("\n| Step | Tokens | Entities | E/T | Attempts |\n|---|---|---|---|---|\n")
	steps := c.Steps()
	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %.4f | %d |\n", s.Index, s.Metrics.Tokens, s.Metrics.Entities, s.Metrics.Ratio, s.Attempts))
	}
	for _, s := range steps {
		if s.Index == 0 {
			sb.WriteString("\n## Initial summary\n\n")
		} else {
			sb.WriteString(fmt.Sprintf("\n## Rewrite %d\n\n", s.Index))
		}
		sb.WriteString(s.Summary.Text)
		sb.WriteString("\n")
		if len(s.Entities) > 0 {
			sb.WriteString("\n**Entities:** " + strings.Join(s.Entities, ", ") + "\n")
		}
		if len(s.Missing) > 0 {
			sb.WriteString("\n**Missing for next round:** " + strings.Join(s.Missing, ", ") + "\n")
		}
	}
	if c.Article.Reference != "" {
		sb.WriteString("\n## Reference summary\n\n")
		sb.WriteString(c.Article.Reference)
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderHTML renders the Markdown report to HTML.
func RenderHTML(c *generator.Chain) (string, error) {
	return mdToHTML(RenderMarkdown(c))
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
