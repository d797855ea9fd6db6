package generator

import "context"

// LLMClient 抽象大模型客户端，便于替换/Mock。Complete 返回模型原始输出，
// 应为符合 prompt.Schema 的 JSON 对象。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	// APIVersion is only read by the azure client.
	APIVersion string
	// ResponseFormat is "json_schema" (strict structured outputs) or
	// "json_object" (plain JSON mode, schema described in the system text).
	ResponseFormat string
	MaxTokens      int
	Temperature    *float64
}

const (
	FormatJSONSchema = "json_schema"
	FormatJSONObject = "json_object"
)
