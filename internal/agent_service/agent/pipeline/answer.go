package pipeline

import (
	"context"

	"SFHelp_Agent/internal/agent_service/agent/interfaces"
	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/pkg/logger"
)

// Composer turns a ranked chunk list into a grounded answer with citations.
type Composer struct {
	completer interfaces.CompletionModel
	maxChunks int
	log       *logger.Logger
}

// NewComposer creates a Composer. maxChunks caps how many chunks enter the
// prompt regardless of what the caller passes.
func NewComposer(completer interfaces.CompletionModel, maxChunks int, log *logger.Logger) *Composer {
	return &Composer{completer: completer, maxChunks: maxChunks, log: log}
}

// Answer builds the prompt for the given mode, invokes the completion
// model, and returns the answer plus a source list that mirrors, in
// membership and order, exactly the chunks that entered the prompt. That
// mirror is what makes the logged doc and chunk ids trustworthy.
func (c *Composer) Answer(ctx context.Context, chunks []*schema.Chunk, summary string, mode AnswerMode) (string, []*schema.Source, error) {
	passages := chunks
	if len(passages) > c.maxChunks {
		passages = passages[:c.maxChunks]
	}

	messages, temperature, err := buildMessages(mode, passages, summary)
	if err != nil {
		return "", nil, err
	}

	answer, err := c.completer.Complete(ctx, messages, temperature)
	if err != nil {
		c.log.WithError(err).Error("Completion failed")
		return "", nil, err
	}
	return answer, sourcesFrom(passages), nil
}

func sourcesFrom(passages []*schema.Chunk) []*schema.Source {
	sources := make([]*schema.Source, 0, len(passages))
	for _, c := range passages {
		sources = append(sources, schema.SourceFromChunk(c))
	}
	return sources
}
