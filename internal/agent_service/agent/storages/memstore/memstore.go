package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"SFHelp_Agent/internal/agent_service/agent/interfaces"
	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/internal/models"
	"SFHelp_Agent/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists per-session conversational memory in two relational
// tables: a session row with the rolling summary and an append-only turn
// log. Turn rows are never updated; recency is insert order.
type Store struct {
	db  *gorm.DB
	cfg config.MemoryConfig
	log *logger.Logger
}

// New creates a Store over the shared gorm handle.
func New(db *gorm.DB, cfg config.MemoryConfig, log *logger.Logger) *Store {
	return &Store{db: db, cfg: cfg, log: log}
}

// EnsureSession creates the session row if it does not exist. Concurrent
// calls for the same id race harmlessly; the insert ignores conflicts.
func (s *Store) EnsureSession(ctx context.Context, sessionID string) error {
	session := models.ConvoSession{SessionID: sessionID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&session).Error
	if err != nil {
		return fmt.Errorf("failed to ensure session %s: %w", sessionID, err)
	}
	return nil
}

// InsertTurn appends one turn to the session log. Nil id slices are stored
// as empty JSON arrays so readers never see SQL NULL.
func (s *Store) InsertTurn(ctx context.Context, sessionID, userText, answerText string, usedDocIDs []string, usedChunkIDs []int64) error {
	if usedDocIDs == nil {
		usedDocIDs = []string{}
	}
	if usedChunkIDs == nil {
		usedChunkIDs = []int64{}
	}
	docJSON, err := json.Marshal(usedDocIDs)
	if err != nil {
		return fmt.Errorf("failed to encode doc ids: %w", err)
	}
	chunkJSON, err := json.Marshal(usedChunkIDs)
	if err != nil {
		return fmt.Errorf("failed to encode chunk ids: %w", err)
	}

	turn := models.ConvoTurn{
		SessionID:    sessionID,
		UserText:     userText,
		AnswerText:   answerText,
		UsedDocIDs:   datatypes.JSON(docJSON),
		UsedChunkIDs: datatypes.JSON(chunkJSON),
	}
	if err := s.db.WithContext(ctx).Create(&turn).Error; err != nil {
		return fmt.Errorf("failed to insert turn for session %s: %w", sessionID, err)
	}
	return nil
}

// UpdateSummary overwrites the rolling summary. Last write wins.
func (s *Store) UpdateSummary(ctx context.Context, sessionID, summary string) error {
	err := s.db.WithContext(ctx).
		Model(&models.ConvoSession{}).
		Where("session_id = ?", sessionID).
		Update("summary", summary).Error
	if err != nil {
		return fmt.Errorf("failed to update summary for session %s: %w", sessionID, err)
	}
	return nil
}

// Summary returns the current rolling summary, or "" for an unknown session.
func (s *Store) Summary(ctx context.Context, sessionID string) (string, error) {
	var session models.ConvoSession
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Limit(1).Find(&session).Error
	if err != nil {
		return "", fmt.Errorf("failed to load summary for session %s: %w", sessionID, err)
	}
	return session.Summary, nil
}

// recentTurns loads the most recent limit turns of a session, newest first.
func (s *Store) recentTurns(ctx context.Context, sessionID string, limit int) ([]models.ConvoTurn, error) {
	var turns []models.ConvoTurn
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load turns for session %s: %w", sessionID, err)
	}
	return turns, nil
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeInt64s(raw datatypes.JSON) []int64 {
	if len(raw) == 0 {
		return nil
	}
	var out []int64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// RecentDocIDs returns the distinct doc ids cited across the most recent
// limitTurns turns, most recently cited first.
func (s *Store) RecentDocIDs(ctx context.Context, sessionID string, limitTurns int) ([]string, error) {
	turns, err := s.recentTurns(ctx, sessionID, limitTurns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, turn := range turns {
		for _, id := range decodeStrings(turn.UsedDocIDs) {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// InferRecentProduct guesses the product the session has been about. The
// first tier maps recently cited doc ids to their document's product tag;
// when that yields nothing the second tier maps recently cited chunk ids to
// the chunk's resolved product over a wider window. The majority tag wins,
// lexicographically smallest on a tie. "" means no inference possible.
func (s *Store) InferRecentProduct(ctx context.Context, sessionID string) (string, error) {
	turns, err := s.recentTurns(ctx, sessionID, s.cfg.ProductScanTurns)
	if err != nil {
		return "", err
	}
	var docIDs []string
	for _, turn := range turns {
		docIDs = append(docIDs, decodeStrings(turn.UsedDocIDs)...)
	}
	if product, err := s.majorityDocProduct(ctx, docIDs); err != nil {
		return "", err
	} else if product != "" {
		return product, nil
	}

	turns, err = s.recentTurns(ctx, sessionID, s.cfg.ChunkScanTurns)
	if err != nil {
		return "", err
	}
	var chunkIDs []int64
	for _, turn := range turns {
		chunkIDs = append(chunkIDs, decodeInt64s(turn.UsedChunkIDs)...)
	}
	return s.majorityChunkProduct(ctx, chunkIDs)
}

// majorityDocProduct counts product tags over the given doc id citations.
// Every citation counts, so a doc cited in three turns weighs three times.
func (s *Store) majorityDocProduct(ctx context.Context, docIDs []string) (string, error) {
	if len(docIDs) == 0 {
		return "", nil
	}
	distinct := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		distinct[id] = struct{}{}
	}
	lookup := make([]string, 0, len(distinct))
	for id := range distinct {
		lookup = append(lookup, id)
	}

	var docs []models.HelpDoc
	err := s.db.WithContext(ctx).
		Where("doc_id IN ?", lookup).
		Find(&docs).Error
	if err != nil {
		return "", fmt.Errorf("failed to load doc products: %w", err)
	}
	productByDoc := make(map[string]string, len(docs))
	for _, d := range docs {
		productByDoc[d.DocID] = d.Product
	}

	counts := make(map[string]int)
	for _, id := range docIDs {
		if p := productByDoc[id]; p != "" {
			counts[p]++
		}
	}
	return majorityKey(counts), nil
}

// majorityChunkProduct resolves cited chunk ids to products, preferring the
// chunk's own tag over its document's tag.
func (s *Store) majorityChunkProduct(ctx context.Context, chunkIDs []int64) (string, error) {
	if len(chunkIDs) == 0 {
		return "", nil
	}
	distinct := make(map[int64]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		distinct[id] = struct{}{}
	}
	lookup := make([]int64, 0, len(distinct))
	for id := range distinct {
		lookup = append(lookup, id)
	}

	var rows []struct {
		ID      int64
		Product string
	}
	err := s.db.WithContext(ctx).
		Raw(`SELECT c.id, COALESCE(NULLIF(c.product, ''), d.product, '') AS product
			FROM help_chunks c
			LEFT JOIN help_docs d ON d.doc_id = c.doc_id
			WHERE c.id IN ?`, lookup).
		Scan(&rows).Error
	if err != nil {
		return "", fmt.Errorf("failed to load chunk products: %w", err)
	}
	productByChunk := make(map[int64]string, len(rows))
	for _, r := range rows {
		productByChunk[r.ID] = r.Product
	}

	counts := make(map[string]int)
	for _, id := range chunkIDs {
		if p := productByChunk[id]; p != "" {
			counts[p]++
		}
	}
	return majorityKey(counts), nil
}

func majorityKey(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// LastSignificantUserQuery returns the most recent user text of at least
// six characters after trimming, preferring turns that cited documents.
// "" means the session has no usable earlier query.
func (s *Store) LastSignificantUserQuery(ctx context.Context, sessionID string) (string, error) {
	turns, err := s.recentTurns(ctx, sessionID, s.cfg.ChunkScanTurns)
	if err != nil {
		return "", err
	}

	fallback := ""
	for _, turn := range turns {
		text := strings.TrimSpace(turn.UserText)
		if len(text) < 6 {
			continue
		}
		if len(decodeStrings(turn.UsedDocIDs)) > 0 {
			return text, nil
		}
		if fallback == "" {
			fallback = text
		}
	}
	return fallback, nil
}

// compile-time check to ensure Store implements the MemoryStore interface
var _ interfaces.MemoryStore = (*Store)(nil)
