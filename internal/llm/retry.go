package llm

import (
	"context"
	"fmt"
	"time"

	"SFHelp_Agent/pkg/logger"
)

// retryClient 用指数退避重试包装一个 Completion 实现。
// 预算耗尽后返回 ErrCompletionUnavailable，不产生部分回答。
type retryClient struct {
	inner      Completion
	maxRetries int
	log        *logger.Logger
}

// NewRetrying 返回带重试的补全网关。maxRetries 是失败后的额外尝试次数。
func NewRetrying(inner Completion, maxRetries int, log *logger.Logger) Completion {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &retryClient{inner: inner, maxRetries: maxRetries, log: log}
}

func (c *retryClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := c.inner.Complete(ctx, messages, temperature)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt >= c.maxRetries {
			break
		}

		sleep := time.Duration(1<<uint(attempt)) * time.Second
		if sleep > 20*time.Second {
			sleep = 20 * time.Second
		}
		c.log.WithError(lastErr).Warn(fmt.Sprintf("completion call failed, retrying in %s (attempt %d/%d)", sleep, attempt+1, c.maxRetries))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrCompletionUnavailable, ctx.Err())
		case <-time.After(sleep):
		}
	}
	return "", fmt.Errorf("%w: %v", ErrCompletionUnavailable, lastErr)
}
