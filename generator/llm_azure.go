package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

// AzureLLM implements LLMClient against an Azure OpenAI deployment. Model is
// the deployment name.
type AzureLLM struct {
	Deployment  string
	MaxTokens   int
	Temperature *float64
	client      *goopenai.Client
}

func NewAzureLLMFromConfig(cfg *LLMSettings) (*AzureLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azure api key missing; provide llm.api_key or llm.api_key_env")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("llm provider azure requires base_url (resource endpoint)")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model (deployment name) is required")
	}
	conf := goopenai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	if cfg.APIVersion != "" {
		conf.APIVersion = cfg.APIVersion
	}
	return &AzureLLM{
		Deployment:  cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		client:      goopenai.NewClientWithConfig(conf),
	}, nil
}

func (a *AzureLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	msgs := []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: prompt.SystemWithSchema()},
	}
	for _, m := range prompt.Messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	req := goopenai.ChatCompletionRequest{
		Model:    a.Deployment,
		Messages: msgs,
	}
	if prompt.Schema.Name != "" {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if n := firstPositive(prompt.MaxTokens, a.MaxTokens); n > 0 {
		req.MaxTokens = n
	}
	if a.Temperature != nil {
		req.Temperature = float32(*a.Temperature)
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if isThrottled(err) {
			return "", fmt.Errorf("azure: %w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("azure: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("azure: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func isThrottled(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
