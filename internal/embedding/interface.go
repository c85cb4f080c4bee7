package embedding

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable 表示 Embedding 服务在重试预算耗尽后仍不可用。
// 上层不会对该错误做本地恢复，整轮对话将以失败结束。
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Embedding 定义了所有 embedding 模型需要实现的接口。
type Embedding interface {
	// Embed 为单个文本生成嵌入向量。
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 为一批文本生成嵌入向量。
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
