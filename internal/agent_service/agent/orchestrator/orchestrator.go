package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"SFHelp_Agent/internal/agent_service/agent/guardrails"
	"SFHelp_Agent/internal/agent_service/agent/interfaces"
	"SFHelp_Agent/internal/agent_service/agent/pipeline"
	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/pkg/logger"
)

const (
	farewellMessage = "Goodbye! If you need anything else from Salesforce Help later, just ask."

	// minContentTokens is the low-information threshold of the classifier.
	minContentTokens = 3

	// summaryTextLimit caps the user text carried into the rolling summary.
	summaryTextLimit = 180

	// overviewFallbackQuery drives retrieval when a vague follow-up has a
	// product but the session has no earlier significant query.
	overviewFallbackQuery = "overview"
)

// sameProductRe detects follow-ups that point back at the product under
// discussion ("the same product", "this one").
var sameProductRe = regexp.MustCompile(`(?i)\b(same|this|that)\s+(product|one)\b`)

// Retriever is the slice of the hybrid ranker the orchestrator needs.
type Retriever interface {
	Search(ctx context.Context, query string, recentDocIDs []string, product string) ([]*schema.Chunk, error)
}

// Composer is the slice of the answer composer the orchestrator needs.
type Composer interface {
	Answer(ctx context.Context, chunks []*schema.Chunk, summary string, mode pipeline.AnswerMode) (string, []*schema.Source, error)
}

// Orchestrator is the per-turn conversation state machine. Each call to
// RunChat classifies the message, resolves the product context from session
// memory, runs retrieval and composition, and records the turn. The state
// is recomputed from memory on every call, nothing is cached between turns.
type Orchestrator struct {
	retriever Retriever
	composer  Composer
	memory    interfaces.MemoryStore
	advisor   *guardrails.Advisor
	cfg       config.MemoryConfig
	log       *logger.Logger
}

// New creates an Orchestrator.
func New(
	retriever Retriever,
	composer Composer,
	memory interfaces.MemoryStore,
	advisor *guardrails.Advisor,
	cfg config.MemoryConfig,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		composer:  composer,
		memory:    memory,
		advisor:   advisor,
		cfg:       cfg,
		log:       log,
	}
}

// RunChat handles one conversation turn. explicitProduct comes from the
// caller and always wins over any inferred product. Empty retrieval results
// become clarification answers, never errors; gateway and persistence
// failures abort the turn.
func (o *Orchestrator) RunChat(ctx context.Context, sessionID, userText, explicitProduct string) (*schema.ChatAnswer, error) {
	if err := o.memory.EnsureSession(ctx, sessionID); err != nil {
		return nil, err
	}

	if guardrails.IsGreeting(userText) {
		answer := o.advisor.WelcomeMessage(ctx)
		if err := o.recordTurn(ctx, sessionID, userText, answer, nil, nil, makeSummary("greeting", nil)); err != nil {
			return nil, err
		}
		return o.result(sessionID, userText, answer, nil), nil
	}

	if guardrails.IsGoodbye(userText) {
		if err := o.recordTurn(ctx, sessionID, userText, farewellMessage, nil, nil, makeSummary("goodbye", nil)); err != nil {
			return nil, err
		}
		return o.result(sessionID, userText, farewellMessage, nil), nil
	}

	recentDocs, err := o.memory.RecentDocIDs(ctx, sessionID, o.cfg.RecentTurns)
	if err != nil {
		return nil, err
	}
	lowInfo := guardrails.IsLowInfo(userText, minContentTokens)

	chosenProduct := explicitProduct
	if chosenProduct == "" && (sameProductRe.MatchString(userText) || lowInfo || len(recentDocs) > 0) {
		chosenProduct, err = o.memory.InferRecentProduct(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}

	if lowInfo {
		return o.handleLowInfo(ctx, sessionID, userText, chosenProduct, recentDocs)
	}
	return o.handleSubstantive(ctx, sessionID, userText, chosenProduct, explicitProduct, recentDocs)
}

// handleLowInfo resolves vague follow-ups. With a known product it retries
// the last significant query as an overview, first restricted to that
// product and then unrestricted; without one it asks for clarification.
func (o *Orchestrator) handleLowInfo(ctx context.Context, sessionID, userText, product string, recentDocs []string) (*schema.ChatAnswer, error) {
	if product != "" {
		query, err := o.memory.LastSignificantUserQuery(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if query == "" {
			query = overviewFallbackQuery
		}

		chunks, err := o.retriever.Search(ctx, query, recentDocs, product)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			chunks, err = o.retriever.Search(ctx, query, recentDocs, "")
			if err != nil {
				return nil, err
			}
		}

		if len(chunks) > 0 {
			summary := makeSummary(userText, topDocTitles(chunks))
			answer, sources, err := o.composer.Answer(ctx, chunks, summary, pipeline.ModeOverview{Product: product})
			if err != nil {
				return nil, err
			}

			banner := fmt.Sprintf("Continuing with %s.\n\n", product)
			if !containsProduct(chunks, product) {
				banner = "Continuing (closest matches).\n\n"
			}
			answer = banner + answer

			docIDs, chunkIDs := citedIDs(sources)
			if err := o.recordTurn(ctx, sessionID, userText, answer, docIDs, chunkIDs, summary); err != nil {
				return nil, err
			}
			return o.result(sessionID, userText, answer, sources), nil
		}
	}

	answer := o.advisor.ClarifyMessage(ctx, userText)
	if product != "" {
		answer += fmt.Sprintf("\n\nTip: we were last looking at %s, so you can keep asking about it.", product)
	}
	if err := o.recordTurn(ctx, sessionID, userText, answer, nil, nil, makeSummary("clarification requested", nil)); err != nil {
		return nil, err
	}
	return o.result(sessionID, userText, answer, nil), nil
}

// handleSubstantive runs the normal retrieval path for a real question.
func (o *Orchestrator) handleSubstantive(ctx context.Context, sessionID, userText, chosenProduct, explicitProduct string, recentDocs []string) (*schema.ChatAnswer, error) {
	chunks, err := o.retriever.Search(ctx, userText, recentDocs, chosenProduct)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		answer := o.advisor.ClarifyMessage(ctx, userText)
		if chosenProduct != "" && explicitProduct == "" {
			answer += fmt.Sprintf("\n\nTip: you can retry with product=%q to narrow the search.", chosenProduct)
		}
		if err := o.recordTurn(ctx, sessionID, userText, answer, nil, nil, makeSummary(userText, nil)); err != nil {
			return nil, err
		}
		return o.result(sessionID, userText, answer, nil), nil
	}

	summary := makeSummary(userText, topDocTitles(chunks))
	answer, sources, err := o.composer.Answer(ctx, chunks, summary, pipeline.ModeDefault{Query: userText})
	if err != nil {
		return nil, err
	}

	if explicitProduct == "" {
		if majority := majorityProduct(chunks); majority != "" {
			answer += fmt.Sprintf("\n\nTip: most of these passages are about %s; pass product=%q to focus future answers.", majority, majority)
		}
	}

	docIDs, chunkIDs := citedIDs(sources)
	if err := o.recordTurn(ctx, sessionID, userText, answer, docIDs, chunkIDs, summary); err != nil {
		return nil, err
	}
	return o.result(sessionID, userText, answer, sources), nil
}

// recordTurn appends the turn and overwrites the rolling summary.
func (o *Orchestrator) recordTurn(ctx context.Context, sessionID, userText, answer string, docIDs []string, chunkIDs []int64, summary string) error {
	if err := o.memory.InsertTurn(ctx, sessionID, userText, answer, docIDs, chunkIDs); err != nil {
		return err
	}
	return o.memory.UpdateSummary(ctx, sessionID, summary)
}

func (o *Orchestrator) result(sessionID, userText, answer string, sources []*schema.Source) *schema.ChatAnswer {
	if sources == nil {
		sources = []*schema.Source{}
	}
	return &schema.ChatAnswer{
		SessionID: sessionID,
		Message:   userText,
		Answer:    answer,
		Sources:   sources,
	}
}

// makeSummary builds the rolling summary line from the driving user text
// and up to three topic strings.
func makeSummary(userText string, topics []string) string {
	if len(userText) > summaryTextLimit {
		userText = userText[:summaryTextLimit]
	}
	summary := "User is asking about: " + userText + "."
	if len(topics) > 3 {
		topics = topics[:3]
	}
	if len(topics) > 0 {
		summary += " Recent topics: " + strings.Join(topics, ", ") + "."
	}
	return summary
}

// topDocTitles collects up to three distinct document titles from the
// ranked chunks, best chunk first, falling back to the doc id when a title
// is missing.
func topDocTitles(chunks []*schema.Chunk) []string {
	seen := make(map[string]struct{})
	var titles []string
	for _, c := range chunks {
		title := c.DocTitle
		if title == "" {
			title = c.DocID
		}
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
		if len(titles) == 3 {
			break
		}
	}
	return titles
}

// citedIDs extracts the distinct doc ids and the chunk ids of an answer's
// source list, preserving source order.
func citedIDs(sources []*schema.Source) ([]string, []int64) {
	seen := make(map[string]struct{})
	docIDs := make([]string, 0, len(sources))
	chunkIDs := make([]int64, 0, len(sources))
	for _, s := range sources {
		chunkIDs = append(chunkIDs, s.ChunkID)
		if s.DocID == "" {
			continue
		}
		if _, ok := seen[s.DocID]; ok {
			continue
		}
		seen[s.DocID] = struct{}{}
		docIDs = append(docIDs, s.DocID)
	}
	return docIDs, chunkIDs
}

func containsProduct(chunks []*schema.Chunk, product string) bool {
	for _, c := range chunks {
		if strings.EqualFold(c.Product, product) {
			return true
		}
	}
	return false
}

// majorityProduct returns the most common non-empty product tag among the
// chunks, lexicographically smallest on a tie, "" when none are tagged.
func majorityProduct(chunks []*schema.Chunk) string {
	counts := make(map[string]int)
	for _, c := range chunks {
		if c.Product != "" {
			counts[c.Product]++
		}
	}
	best := ""
	for product, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && product < best) {
			best = product
		}
	}
	return best
}
