package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"SFHelp_Agent/internal/agent_service/agent/interfaces"
	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/pkg/logger"
)

// HybridRanker merges the vector and lexical candidate pools into one
// ranked chunk list: min-max normalize each signal over the merged set,
// blend with a fixed alpha, add a small boost for recently cited documents,
// then filter out chunks that are neither semantically close nor lexically
// matched.
type HybridRanker struct {
	embedder interfaces.EmbeddingModel
	store    interfaces.CandidateStore
	cfg      config.RetrievalConfig
	log      *logger.Logger
}

// NewHybridRanker creates a HybridRanker.
func NewHybridRanker(
	embedder interfaces.EmbeddingModel,
	store interfaces.CandidateStore,
	cfg config.RetrievalConfig,
	log *logger.Logger,
) *HybridRanker {
	return &HybridRanker{embedder: embedder, store: store, cfg: cfg, log: log}
}

// Search runs the full hybrid retrieval for one query. recentDocIDs biases
// scoring toward documents the session already cited; product, when
// non-empty, restricts both candidate pools. The result is freshly computed
// per call, at most TopKFinal chunks, best first.
func (r *HybridRanker) Search(ctx context.Context, query string, recentDocIDs []string, product string) ([]*schema.Chunk, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.log.WithError(err).Error("Failed to embed query")
		return nil, err
	}

	// The two candidate queries are independent, run them concurrently.
	var (
		wg        sync.WaitGroup
		vecChunks []*schema.Chunk
		lexChunks []*schema.Chunk
		vecErr    error
		lexErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vecChunks, vecErr = r.store.VectorSearch(ctx, embedding, r.cfg.TopKVector, product)
	}()
	go func() {
		defer wg.Done()
		lexChunks, lexErr = r.store.LexicalSearch(ctx, query, r.cfg.TopKFts, product)
	}()
	wg.Wait()
	if vecErr != nil {
		return nil, fmt.Errorf("vector candidate query failed: %w", vecErr)
	}
	if lexErr != nil {
		return nil, fmt.Errorf("lexical candidate query failed: %w", lexErr)
	}

	merged := mergePools(vecChunks, lexChunks)
	if len(merged) == 0 {
		r.log.Info("No candidates found for query")
		return []*schema.Chunk{}, nil
	}

	scoreChunks(merged, r.cfg.HybridAlpha)

	if len(recentDocIDs) > 0 {
		recent := make(map[string]struct{}, len(recentDocIDs))
		for _, id := range recentDocIDs {
			recent[id] = struct{}{}
		}
		for _, c := range merged {
			if _, ok := recent[c.DocID]; ok {
				c.HybridScore += r.cfg.MemoryDocBoost
			}
		}
	}

	// Keep chunks that are semantically close or lexically matched. When the
	// filter would return fewer than TopKFinal chunks it is discarded
	// entirely, so the guardrail never starves a query of available results.
	filtered := make([]*schema.Chunk, 0, len(merged))
	for _, c := range merged {
		closeEnough := c.VecDist != nil && *c.VecDist <= r.cfg.MinRelevance
		lexMatched := c.FtsRank != nil && *c.FtsRank > 0
		if closeEnough || lexMatched {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) < r.cfg.TopKFinal {
		filtered = merged
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].HybridScore != filtered[j].HybridScore {
			return filtered[i].HybridScore > filtered[j].HybridScore
		}
		return filtered[i].ID < filtered[j].ID
	})
	if len(filtered) > r.cfg.TopKFinal {
		filtered = filtered[:r.cfg.TopKFinal]
	}
	return filtered, nil
}

// mergePools unions the two candidate pools by chunk id. A chunk present in
// both keeps both of its signals.
func mergePools(vecChunks, lexChunks []*schema.Chunk) []*schema.Chunk {
	byID := make(map[int64]*schema.Chunk, len(vecChunks)+len(lexChunks))
	merged := make([]*schema.Chunk, 0, len(vecChunks)+len(lexChunks))

	for _, c := range vecChunks {
		byID[c.ID] = c
		merged = append(merged, c)
	}
	for _, c := range lexChunks {
		if existing, ok := byID[c.ID]; ok {
			existing.FtsRank = c.FtsRank
			continue
		}
		byID[c.ID] = c
		merged = append(merged, c)
	}
	return merged
}

// scoreChunks fills HybridScore for every merged chunk. Each signal is
// min-max scaled over the chunks that carry it, the vector side inverted so
// that closer always means higher. A degenerate span (min == max) maps every
// present value to 1 and every absent value to 0. A chunk missing a signal
// contributes 0 for that component.
func scoreChunks(merged []*schema.Chunk, alpha float64) {
	var (
		haveVec, haveLex bool
		minDist, maxDist float64
		minRank, maxRank float64
	)
	for _, c := range merged {
		if c.VecDist != nil {
			if !haveVec || *c.VecDist < minDist {
				minDist = *c.VecDist
			}
			if !haveVec || *c.VecDist > maxDist {
				maxDist = *c.VecDist
			}
			haveVec = true
		}
		if c.FtsRank != nil {
			if !haveLex || *c.FtsRank < minRank {
				minRank = *c.FtsRank
			}
			if !haveLex || *c.FtsRank > maxRank {
				maxRank = *c.FtsRank
			}
			haveLex = true
		}
	}

	for _, c := range merged {
		var vecGoodness, lexGoodness float64
		if c.VecDist != nil {
			if maxDist == minDist {
				vecGoodness = 1
			} else {
				vecGoodness = (maxDist - *c.VecDist) / (maxDist - minDist)
			}
		}
		if c.FtsRank != nil {
			if maxRank == minRank {
				lexGoodness = 1
			} else {
				lexGoodness = (*c.FtsRank - minRank) / (maxRank - minRank)
			}
		}
		c.HybridScore = alpha*lexGoodness + (1-alpha)*vecGoodness
	}
}
