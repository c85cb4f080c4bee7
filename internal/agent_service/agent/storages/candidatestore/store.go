package candidatestore

import (
	"context"
	"fmt"

	"SFHelp_Agent/internal/agent_service/agent/interfaces"
	"SFHelp_Agent/internal/agent_service/agent/schema"
	milvusdb "SFHelp_Agent/internal/database/milvus"
	"SFHelp_Agent/pkg/logger"

	"gorm.io/gorm"
)

// Store is the Candidate Store: Milvus answers nearest-neighbour queries
// over chunk embeddings, MySQL answers the lexical full-text query and
// hydrates vector hits with their text and metadata. A chunk's product is
// resolved as COALESCE(chunk tag, document tag).
type Store struct {
	db     *gorm.DB
	milvus *milvusdb.MilvusClient
	log    *logger.Logger
}

// New creates a Store over the shared gorm handle and Milvus client.
func New(db *gorm.DB, milvus *milvusdb.MilvusClient, log *logger.Logger) *Store {
	return &Store{db: db, milvus: milvus, log: log}
}

// chunkRow is the scan target shared by the lexical and hydration queries.
type chunkRow struct {
	ID           int64
	DocID        string
	DocTitle     string
	SectionTitle string
	SectionLevel int
	PageStart    int
	PageEnd      int
	Content      string
	Product      string
	FtsRank      float64
}

// selectColumns is the projection both relational queries share.
const selectColumns = `c.id, c.doc_id, c.doc_title, c.section_title, c.section_level,
	c.page_start, c.page_end, c.content,
	COALESCE(NULLIF(c.product, ''), d.product, '') AS product`

func (r *chunkRow) toChunk() (*schema.Chunk, error) {
	c := &schema.Chunk{
		ID:           r.ID,
		DocID:        r.DocID,
		DocTitle:     r.DocTitle,
		SectionTitle: r.SectionTitle,
		SectionLevel: r.SectionLevel,
		PageStart:    r.PageStart,
		PageEnd:      r.PageEnd,
		Content:      r.Content,
		Product:      r.Product,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LexicalSearch runs a natural-language full-text match over section title
// and content. Only chunks whose indexed text matches the query are
// returned, ranked descending; no lexical overlap means zero rows.
func (s *Store) LexicalSearch(ctx context.Context, query string, topK int, product string) ([]*schema.Chunk, error) {
	sql := `SELECT ` + selectColumns + `,
		MATCH(c.section_title, c.content) AGAINST (? IN NATURAL LANGUAGE MODE) AS fts_rank
		FROM help_chunks c
		LEFT JOIN help_docs d ON d.doc_id = c.doc_id
		WHERE MATCH(c.section_title, c.content) AGAINST (? IN NATURAL LANGUAGE MODE)`
	args := []interface{}{query, query}

	if product != "" {
		sql += ` AND COALESCE(NULLIF(c.product, ''), d.product, '') = ?`
		args = append(args, product)
	}
	sql += ` ORDER BY fts_rank DESC LIMIT ?`
	args = append(args, topK)

	var rows []chunkRow
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	chunks := make([]*schema.Chunk, 0, len(rows))
	for i := range rows {
		chunk, err := rows[i].toChunk()
		if err != nil {
			return nil, err
		}
		rank := rows[i].FtsRank
		chunk.FtsRank = &rank
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// hydrate loads full chunk rows for the given ids and returns them keyed by
// id. Ids without a row are tolerated: the vector index may briefly know
// chunks the relational side no longer has.
func (s *Store) hydrate(ctx context.Context, ids []int64) (map[int64]*schema.Chunk, error) {
	if len(ids) == 0 {
		return map[int64]*schema.Chunk{}, nil
	}

	sql := `SELECT ` + selectColumns + `
		FROM help_chunks c
		LEFT JOIN help_docs d ON d.doc_id = c.doc_id
		WHERE c.id IN ?`

	var rows []chunkRow
	if err := s.db.WithContext(ctx).Raw(sql, ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("chunk hydration failed: %w", err)
	}

	out := make(map[int64]*schema.Chunk, len(rows))
	for i := range rows {
		chunk, err := rows[i].toChunk()
		if err != nil {
			return nil, err
		}
		out[chunk.ID] = chunk
	}
	return out, nil
}

// TopProducts lists the most common product tags by chunk count, falling
// back to the document-title prefix (text before the first underscore) for
// chunks that were never backfilled with a tag.
func (s *Store) TopProducts(ctx context.Context, limit int) ([]string, error) {
	sql := `SELECT COALESCE(NULLIF(product, ''), SUBSTRING_INDEX(doc_title, '_', 1)) AS p, COUNT(*) AS n
		FROM help_chunks
		GROUP BY p
		HAVING p IS NOT NULL AND p <> ''
		ORDER BY n DESC, p ASC
		LIMIT ?`

	var rows []struct {
		P string
		N int64
	}
	if err := s.db.WithContext(ctx).Raw(sql, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("top products query failed: %w", err)
	}

	products := make([]string, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.P)
	}
	return products, nil
}

// Products lists all distinct non-empty product tags, ascending.
func (s *Store) Products(ctx context.Context) ([]string, error) {
	var products []string
	err := s.db.WithContext(ctx).
		Raw(`SELECT DISTINCT product FROM help_chunks WHERE product IS NOT NULL AND product <> '' ORDER BY product ASC`).
		Scan(&products).Error
	if err != nil {
		return nil, fmt.Errorf("products query failed: %w", err)
	}
	return products, nil
}

// compile-time check to ensure Store implements the CandidateStore interface
var _ interfaces.CandidateStore = (*Store)(nil)
