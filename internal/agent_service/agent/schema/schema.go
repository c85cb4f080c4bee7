package schema

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord indicates a store row that does not satisfy the Chunk
// schema (missing id, doc id or content). Rows are validated eagerly when
// they are mapped out of the store instead of silently defaulting fields.
var ErrMalformedRecord = errors.New("malformed chunk record")

// Chunk is the central retrieval data structure: one unit of help-document
// text with its position metadata and the scores attached during a query.
// VecDist and FtsRank are nil when the chunk did not appear in the
// corresponding candidate pool; they are never persisted.
type Chunk struct {
	ID           int64  `json:"id"`
	DocID        string `json:"doc_id"`
	DocTitle     string `json:"doc_title"`
	SectionTitle string `json:"section_title"`
	SectionLevel int    `json:"section_level"`
	PageStart    int    `json:"page_start"`
	PageEnd      int    `json:"page_end"`
	Content      string `json:"content"`
	Product      string `json:"product"` // resolved from the chunk tag or its document, may be empty

	VecDist     *float64 `json:"vec_dist,omitempty"` // embedding distance, lower is closer
	FtsRank     *float64 `json:"fts_rank,omitempty"` // lexical rank, higher is better
	HybridScore float64  `json:"hybrid_score"`       // combined score, higher is better
}

// Validate checks the invariants every chunk coming out of the store must
// hold. It returns ErrMalformedRecord (wrapped with the offending field)
// on violation.
func (c *Chunk) Validate() error {
	switch {
	case c.ID <= 0:
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	case c.DocID == "":
		return fmt.Errorf("%w: chunk %d has no doc id", ErrMalformedRecord, c.ID)
	case c.Content == "":
		return fmt.Errorf("%w: chunk %d has no content", ErrMalformedRecord, c.ID)
	}
	return nil
}

// Source is the citation-ready projection of a Chunk used in an answer.
// The source list of an answer mirrors, in membership and order, exactly
// the chunks that were placed into the prompt.
type Source struct {
	ChunkID      int64   `json:"chunk_id"`
	DocID        string  `json:"doc_id"`
	DocTitle     string  `json:"doc_title,omitempty"`
	SectionTitle string  `json:"section_title,omitempty"`
	PageStart    int     `json:"page_start,omitempty"`
	PageEnd      int     `json:"page_end,omitempty"`
	Score        float64 `json:"score"`
}

// SourceFromChunk projects a chunk into its citation form.
func SourceFromChunk(c *Chunk) *Source {
	return &Source{
		ChunkID:      c.ID,
		DocID:        c.DocID,
		DocTitle:     c.DocTitle,
		SectionTitle: c.SectionTitle,
		PageStart:    c.PageStart,
		PageEnd:      c.PageEnd,
		Score:        c.HybridScore,
	}
}

// ChatAnswer is the per-turn result returned to the API layer.
type ChatAnswer struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Answer    string    `json:"answer"`
	Sources   []*Source `json:"sources"`
}
