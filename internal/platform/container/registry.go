package container

import (
	"log/slog"

	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/infra/localembed"
	"github.com/jinford/chat-rag/internal/infra/localmodel"
	"github.com/jinford/chat-rag/internal/infra/openai"
	"github.com/jinford/chat-rag/internal/platform/config"
)

// NewRegistry は設定から埋め込みと言語モデルのプロバイダを一度だけ解決する。
// 設定に失敗したプロバイダはエラーごと登録し、外部への通信は行わない
func NewRegistry(cfg *config.Config, logger *slog.Logger) *llm.Registry {
	if logger == nil {
		logger = slog.Default()
	}
	reg := llm.NewRegistry()
	timeout := cfg.Provider.Timeout

	registerHosted(reg, cfg, logger)

	reg.RegisterEmbedder(llm.EmbeddingLocal, localembed.NewEmbedder(
		localembed.WithDimension(cfg.Local.EmbeddingDimension),
	))

	for _, variant := range localmodel.Variants {
		gen, err := localmodel.New(variant, localmodel.Config{
			WeightsDir: cfg.Local.WeightsDir,
			BaseURL:    cfg.Local.LLMBaseURL,
		})
		if err != nil {
			logger.Debug("local model unavailable", "model", variant.Name, "error", err)
			reg.DisableModel(variant.Name, err)
			continue
		}
		reg.RegisterModel(&llm.Model{
			Name:      variant.Name,
			Generator: llm.WithTimeout(gen, timeout),
		})
	}

	return reg
}

func registerHosted(reg *llm.Registry, cfg *config.Config, logger *slog.Logger) {
	policy := llm.CredentialPolicy{
		Prefix: cfg.OpenAI.APIKeyPrefix,
		Length: cfg.OpenAI.APIKeyLength,
	}
	if err := policy.Validate(cfg.OpenAI.APIKey); err != nil {
		// 形式が不正なキーではクライアントを作らない
		logger.Warn("hosted provider disabled", "error", err)
		reg.DisableEmbedder(llm.EmbeddingHosted, err)
		reg.DisableModel(llm.ModelHosted, err)
		return
	}

	timeout := cfg.Provider.Timeout
	limiter := llm.NewRateLimiter(cfg.OpenAI.RequestsPerMinute, cfg.Vector.EmbedConcurrency)

	embedder := openai.NewEmbedder(cfg.OpenAI.APIKey,
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		openai.WithEmbeddingBaseURL(cfg.OpenAI.BaseURL),
	)
	reg.RegisterEmbedder(llm.EmbeddingHosted,
		llm.ThrottleEmbedder(llm.EmbedderWithTimeout(embedder, timeout), limiter))

	client := openai.NewClient(cfg.OpenAI.APIKey,
		openai.WithModel(cfg.OpenAI.LLMModel),
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithTemperature(0),
		openai.WithMaxRetries(cfg.OpenAI.MaxRetries),
	)
	reg.RegisterModel(&llm.Model{
		Name:      llm.ModelHosted,
		Generator: llm.Throttle(llm.WithTimeout(client, timeout), limiter),
		Metered:   true,
	})
}
