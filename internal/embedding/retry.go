package embedding

import (
	"context"
	"fmt"
	"time"

	"SFHelp_Agent/pkg/logger"
)

// retryModel 用指数退避重试包装一个 Embedding 实现。
// 重试预算耗尽后返回 ErrEmbeddingUnavailable，不做部分结果。
type retryModel struct {
	inner      Embedding
	maxRetries int
	log        *logger.Logger
}

// NewRetrying 返回带重试的 Embedding 网关。maxRetries 是失败后的
// 额外尝试次数；小于等于 0 时不重试。
func NewRetrying(inner Embedding, maxRetries int, log *logger.Logger) Embedding {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &retryModel{inner: inner, maxRetries: maxRetries, log: log}
}

func (m *retryModel) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := m.withBackoff(ctx, func() error {
		var err error
		out, err = m.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

func (m *retryModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := m.withBackoff(ctx, func() error {
		var err error
		out, err = m.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

// withBackoff 执行 op，失败后按 1s, 2s, 4s ... (上限 20s) 退避重试。
func (m *retryModel) withBackoff(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt >= m.maxRetries {
			break
		}

		sleep := time.Duration(1<<uint(attempt)) * time.Second
		if sleep > 20*time.Second {
			sleep = 20 * time.Second
		}
		m.log.WithError(lastErr).Warn(fmt.Sprintf("embedding call failed, retrying in %s (attempt %d/%d)", sleep, attempt+1, m.maxRetries))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, ctx.Err())
		case <-time.After(sleep):
		}
	}
	return fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}
