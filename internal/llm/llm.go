package llm

import (
	"context"
	"errors"
	"fmt"

	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/pkg/logger"
)

// ErrCompletionUnavailable 表示对话补全服务在重试预算耗尽后仍不可用。
var ErrCompletionUnavailable = errors.New("completion service unavailable")

// 消息角色。
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message 是发送给补全服务的一条消息。
type Message struct {
	Role    string
	Content string
}

// Completion 定义了补全网关：一组消息进、一段文本出。
// temperature 控制采样随机性，由调用方按提示模式决定。
type Completion interface {
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了
// Completion 接口的客户端，返回前已带上重试装饰。
func NewClient(cfg config.LLMConfig, log *logger.Logger) (Completion, error) {
	var (
		inner Completion
		err   error
	)

	switch cfg.Provider {
	case "openai":
		inner, err = NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey)
	case "gemini":
		inner, err = NewGemini(cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "ollama":
		inner, err = NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRetrying(inner, cfg.MaxRetries, log), nil
}
