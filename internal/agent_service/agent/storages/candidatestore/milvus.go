package candidatestore

import (
	"context"
	"fmt"
	"strings"

	"SFHelp_Agent/internal/agent_service/agent/schema"
	milvusdb "SFHelp_Agent/internal/database/milvus"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// VectorSearch retrieves the topK nearest chunks for the given embedding,
// optionally restricted to one product, and hydrates the hits from MySQL.
// The collection is indexed with COSINE similarity; scores are converted to
// distances (1 - score) so smaller always means closer.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, topK int, product string) ([]*schema.Chunk, error) {
	filterExpr := ""
	if product != "" {
		filterExpr = fmt.Sprintf(`%s == "%s"`, milvusdb.FieldProduct, escapeFilterValue(product))
	}

	searchParams, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}
	outputFields := []string{milvusdb.FieldID}

	searchResults, err := s.milvus.Client.Search(
		ctx, s.milvus.Config.Collection, []string{}, filterExpr, outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		milvusdb.FieldEmbedding, entity.COSINE, topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	type hit struct {
		id   int64
		dist float64
	}
	var hits []hit
	for _, res := range searchResults {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		idCol, ok := findColumn(milvusdb.FieldID).(*entity.ColumnInt64)
		if !ok {
			s.log.Warn("Search result is missing ID field or has wrong type, skipping.")
			continue
		}
		idData := idCol.Data()

		for i := 0; i < res.ResultCount; i++ {
			hits = append(hits, hit{id: idData[i], dist: 1 - float64(res.Scores[i])})
		}
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	rows, err := s.hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	chunks := make([]*schema.Chunk, 0, len(hits))
	for _, h := range hits {
		chunk, ok := rows[h.id]
		if !ok {
			s.log.WithField("chunk_id", h.id).Warn("Vector hit has no relational row, skipping.")
			continue
		}
		dist := h.dist
		chunk.VecDist = &dist
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}
