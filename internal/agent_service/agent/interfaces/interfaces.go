package interfaces

import (
	"context"

	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/internal/llm"
)

// EmbeddingModel is the capability the ranker needs from the embedding
// gateway: text in, fixed-dimension vector out.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompletionModel is the capability the answer composer needs from the
// LLM gateway.
type CompletionModel interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error)
}

// CandidateStore exposes the two candidate queries of hybrid retrieval plus
// the product catalog reads used by guidance messages. Both searches accept
// an optional product restriction (empty string means unrestricted); a
// chunk's product is its own tag or, if absent, its document's tag.
type CandidateStore interface {
	// VectorSearch returns the topK chunks closest to the query embedding,
	// each with VecDist populated.
	VectorSearch(ctx context.Context, embedding []float32, topK int, product string) ([]*schema.Chunk, error)

	// LexicalSearch returns up to topK chunks matching the query under a
	// natural-language full-text match over section title and content, each
	// with FtsRank populated. No lexical overlap means zero rows.
	LexicalSearch(ctx context.Context, query string, topK int, product string) ([]*schema.Chunk, error)

	// TopProducts lists the most common product tags by chunk count,
	// descending, falling back to a document-title prefix for untagged
	// chunks.
	TopProducts(ctx context.Context, limit int) ([]string, error)

	// Products lists all distinct non-empty product tags.
	Products(ctx context.Context) ([]string, error)
}

// MemoryStore persists per-session conversational state.
type MemoryStore interface {
	// EnsureSession creates the session if it does not exist. Idempotent;
	// concurrent calls for the same id never error.
	EnsureSession(ctx context.Context, sessionID string) error

	// InsertTurn appends one turn to the session log.
	InsertTurn(ctx context.Context, sessionID, userText, answerText string, usedDocIDs []string, usedChunkIDs []int64) error

	// UpdateSummary overwrites the rolling session summary.
	UpdateSummary(ctx context.Context, sessionID, summary string) error

	// Summary returns the current rolling summary ("" when none).
	Summary(ctx context.Context, sessionID string) (string, error)

	// RecentDocIDs returns the distinct doc ids cited across the most
	// recent limitTurns turns.
	RecentDocIDs(ctx context.Context, sessionID string, limitTurns int) ([]string, error)

	// InferRecentProduct guesses which product the session has been about,
	// from recently cited documents first and recently cited chunks second.
	// Empty string when nothing can be inferred.
	InferRecentProduct(ctx context.Context, sessionID string) (string, error)

	// LastSignificantUserQuery returns the most recent user text of at
	// least six characters, preferring turns that cited documents.
	LastSignificantUserQuery(ctx context.Context, sessionID string) (string, error)
}
