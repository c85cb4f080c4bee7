package embedding

import (
	"fmt"

	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/pkg/logger"
)

// NewEmdModel 根据配置创建并返回一个新的 Embedding 模型实例。
// 返回的实例已经带上重试装饰，调用方拿到的即是完整的嵌入网关。
func NewEmdModel(cfg config.EmbeddingConfig, log *logger.Logger) (Embedding, error) {
	var (
		inner Embedding
		err   error
	)

	// 根据提供商类型创建相应的 Embedding 模型实例。
	switch cfg.Provider {
	case "openai":
		inner, err = NewOpenAIModel(cfg.OpenAI.Model, cfg.OpenAI.APIKey)
	case "gemini":
		inner, err = NewGoogleModel(cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "ollama":
		inner, err = NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRetrying(inner, cfg.MaxRetries, log), nil
}
