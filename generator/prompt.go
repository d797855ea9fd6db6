package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	InitialSchemaName = "InitialSummary"
	RewriteSchemaName = "RewrittenSummary"

	articlePrefix  = "Here is the Article: "
	previousPrefix = "Here is the previous summary: "
	includePrefix  = "Please include these Missing Entities: "
)

// Prompt 表示发送给 LLM 的消息集合及期望的 JSON Schema。
type Prompt struct {
	System    string
	Messages  []Message
	Schema    Schema
	MaxTokens int
}

// Message 一轮对话。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema names the JSON object the model must answer with.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// SystemWithSchema returns the system text followed by the schema, for
// providers that only offer a plain JSON mode.
func (p Prompt) SystemWithSchema() string {
	if p.Schema.Name == "" {
		return p.System
	}
	def, err := json.Marshal(p.Schema.Definition)
	if err != nil {
		return p.System
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.System))
	sb.WriteString("\n\nRespond only with a JSON object (")
	sb.WriteString(p.Schema.Name)
	sb.WriteString(": ")
	sb.WriteString(p.Schema.Description)
	sb.WriteString(") matching this JSON schema:\n")
	sb.Write(def)
	return sb.String()
}

// WithCorrection returns a copy of p extended with the rejected response and
// the validation message, so the next call can repair its answer.
func (p Prompt) WithCorrection(raw string, err error) Prompt {
	msgs := make([]Message, 0, len(p.Messages)+2)
	msgs = append(msgs, p.Messages...)
	msgs = append(msgs,
		Message{Role: RoleAssistant, Content: raw},
		Message{Role: RoleUser, Content: "Recall the function correctly, fix the errors:\n" + err.Error()},
	)
	p.Messages = msgs
	return p
}

// BuildInitialPrompt asks for a long, entity-sparse first summary.
func BuildInitialPrompt(article string, words int) Prompt {
	if words <= 0 {
		words = DefaultTargetWords
	}
	system := fmt.Sprintf("Write a summary about the article that is long (4-5 sentences) yet highly non-specific. Use overly, verbose language and fillers(eg.,'this article discusses') to reach ~%d words", words)
	return Prompt{
		System: system,
		Messages: []Message{
			{Role: RoleUser, Content: articlePrefix + article},
			{Role: RoleUser, Content: fmt.Sprintf("The generated summary should be about %d words.", words)},
		},
		Schema: initialSchema(words),
	}
}

// BuildRewritePrompt asks for a denser rewrite of previous. include is the
// missing-entity list of the previous step; empty on the first rewrite.
func BuildRewritePrompt(article, previous string, include []string, words, maxTokens int) Prompt {
	if words <= 0 {
		words = DefaultTargetWords
	}
	var sb strings.Builder
	sb.WriteString("You are going to generate an increasingly concise, entity-dense summary of the following article.\n\n")
	sb.WriteString("Perform the following two tasks\n")
	sb.WriteString("- Identify 1-3 informative entities from the following article which is missing from the previous summary\n")
	sb.WriteString("- Write a new denser summary of identical length which covers every entity and detail from the previous summary plus the Missing Entities\n\n")
	sb.WriteString("Guidelines\n")
	sb.WriteString("- Make every word count: re-write the previous summary to improve flow and make space for additional entities\n")
	sb.WriteString("- Make space with fusion, compression, and removal of uninformative phrases like \"the article discusses\".\n")
	sb.WriteString("- The summaries should become highly dense and concise yet self-contained, e.g., easily understood without the Article.\n")
	sb.WriteString("- Missing entities can appear anywhere in the new summary\n")
	sb.WriteString("- Never drop entities from the previous summary. If space cannot be made, add fewer new entities.\n")

	msgs := []Message{
		{Role: RoleUser, Content: articlePrefix + article},
		{Role: RoleUser, Content: previousPrefix + previous},
	}
	if len(include) > 0 {
		msgs = append(msgs, Message{Role: RoleUser, Content: includePrefix + strings.Join(include, ",")})
	}
	return Prompt{
		System:    sb.String(),
		Messages:  msgs,
		Schema:    rewriteSchema(words),
		MaxTokens: maxTokens,
	}
}

func initialSchema(words int) Schema {
	return Schema{
		Name:        InitialSchemaName,
		Description: fmt.Sprintf("An initial summary which is long (4-5 sentences, ~%d words) yet highly non-specific, containing little information beyond the entities marked as missing.", words),
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("A summary of the article which is overly verbose and uses fillers. It should be roughly %d words in length", words),
				},
			},
			"required":             []string{"summary"},
			"additionalProperties": false,
		},
	}
}

func rewriteSchema(words int) Schema {
	entityList := func(desc string) map[string]any {
		return map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": desc,
		}
	}
	return Schema{
		Name:        RewriteSchemaName,
		Description: "A new, denser summary of identical length which covers every entity and detail from the previous summary plus the Missing Entities. An Entity is a real-world object that's assigned a name, for example a person, country, product or book title.",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("A new, denser summary of identical length (~%d words) which covers every entity and detail from the previous summary plus the Missing Entities, easily understood without the Article", words),
				},
				"absent":  entityList("Entities found absent from the new summary that were present in the previous summary"),
				"missing": entityList("1-3 informative Entities from the Article that are missing from the new summary which should be included in the next generated summary"),
			},
			"required":             []string{"summary", "absent", "missing"},
			"additionalProperties": false,
		},
	}
}
