package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// Ollama 是一个用于本地 Ollama 服务的补全客户端。
type Ollama struct {
	client *ollama.Client // Ollama 客户端实例。
	model  string         // 要使用的模型名称。
}

// NewOllama 创建一个新的 Ollama 客户端。
// baseURL 为空时默认使用 "http://localhost:11434"。
func NewOllama(model, baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{client: ollama.NewClient(parsedURL, hc), model: model}, nil
}

// Complete 使用 Ollama Chat API 生成一段回答文本。
func (o *Ollama) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	chatMessages := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, ollama.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream := false
	var sb strings.Builder
	err := o.client.Chat(ctx, &ollama.ChatRequest{
		Model:    o.model,
		Messages: chatMessages,
		Stream:   &stream,
		Options:  map[string]interface{}{"temperature": temperature},
	}, func(resp ollama.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to chat with ollama: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}
