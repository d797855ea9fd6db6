package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"chain_of_density/config"
	"chain_of_density/generator"
)

func buildLLM(cfg config.LLMConfig) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		APIVersion:     cfg.APIVersion,
		ResponseFormat: cfg.ResponseFormat,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
	}
	switch cfg.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url；不支持 json_schema，默认用 json_object。
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		if settings.ResponseFormat == "" {
			settings.ResponseFormat = generator.FormatJSONObject
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "azure":
		return generator.NewAzureLLMFromConfig(settings)
	case "ollama":
		return generator.NewOllamaLLMFromConfig(settings)
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

func agentOptions(cfg config.Config, logger *slog.Logger) generator.AgentOptions {
	return generator.AgentOptions{
		MinTokens:         cfg.Chain.MinTokens,
		TargetWords:       cfg.Chain.TargetWords,
		MaxTokens:         cfg.LLM.MaxTokens,
		InitialRetries:    cfg.Chain.InitialRetries,
		RewriteRetries:    cfg.Chain.RewriteRetries,
		RetryBackoff:      cfg.Chain.RetryBackoff,
		TransportRetries:  cfg.Chain.TransportRetries,
		TransportBackoff:  cfg.Chain.TransportBackoff,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Logger:            logger,
	}
}

// buildDensifier wires provider, agent and densifier from cfg.
func buildDensifier(cfg config.Config, logger *slog.Logger, extra ...generator.Option) (*generator.Densifier, error) {
	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}
	agent, err := generator.NewAgent(llm, agentOptions(cfg, logger))
	if err != nil {
		return nil, err
	}
	opts := []generator.Option{
		generator.WithSteps(cfg.Chain.Steps),
		generator.WithLogger(logger),
		generator.WithEntityTracking(cfg.TrackEntities()),
		generator.WithArticleLimit(cfg.Chain.MaxArticleChars),
	}
	return generator.NewDensifier(agent, append(opts, extra...)...)
}

func newLogger(level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
