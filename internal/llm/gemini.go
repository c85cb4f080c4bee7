package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个用于 Google GenAI API 的补全客户端。
type Gemini struct {
	client *genai.Client // GenAI 客户端实例。
	model  string        // 要使用的模型名称。
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Complete 使用 Gemini 生成一段回答文本。
// system 角色的消息映射为 SystemInstruction，其余消息按顺序拼接为用户部分。
func (g *Gemini) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	gm := g.client.GenerativeModel(g.model)
	gm.SetTemperature(float32(temperature))

	var parts []genai.Part
	for _, m := range messages {
		if m.Role == RoleSystem {
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
			continue
		}
		parts = append(parts, genai.Text(m.Content))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no user content to send")
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content with gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
