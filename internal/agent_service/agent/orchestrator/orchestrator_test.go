package orchestrator

import (
	"context"
	"strings"
	"testing"

	"SFHelp_Agent/internal/agent_service/agent/guardrails"
	"SFHelp_Agent/internal/agent_service/agent/pipeline"
	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/pkg/logger"
)

// fakeMemory is an in-memory MemoryStore good enough for state-machine
// tests: turn order is append order.
type fakeMemory struct {
	sessions map[string]string // session id -> summary
	turns    []fakeTurn
}

type fakeTurn struct {
	sessionID string
	userText  string
	answer    string
	docIDs    []string
	chunkIDs  []int64
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{sessions: map[string]string{}}
}

func (m *fakeMemory) EnsureSession(ctx context.Context, sessionID string) error {
	if _, ok := m.sessions[sessionID]; !ok {
		m.sessions[sessionID] = ""
	}
	return nil
}

func (m *fakeMemory) InsertTurn(ctx context.Context, sessionID, userText, answerText string, usedDocIDs []string, usedChunkIDs []int64) error {
	m.turns = append(m.turns, fakeTurn{sessionID, userText, answerText, usedDocIDs, usedChunkIDs})
	return nil
}

func (m *fakeMemory) UpdateSummary(ctx context.Context, sessionID, summary string) error {
	m.sessions[sessionID] = summary
	return nil
}

func (m *fakeMemory) Summary(ctx context.Context, sessionID string) (string, error) {
	return m.sessions[sessionID], nil
}

func (m *fakeMemory) RecentDocIDs(ctx context.Context, sessionID string, limitTurns int) ([]string, error) {
	seen := map[string]struct{}{}
	var ids []string
	count := 0
	for i := len(m.turns) - 1; i >= 0 && count < limitTurns; i-- {
		if m.turns[i].sessionID != sessionID {
			continue
		}
		count++
		for _, id := range m.turns[i].docIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// product lookup is keyed by doc id prefix in these tests
func (m *fakeMemory) InferRecentProduct(ctx context.Context, sessionID string) (string, error) {
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].sessionID != sessionID {
			continue
		}
		for _, id := range m.turns[i].docIDs {
			if product, ok := strings.CutSuffix(id, "-doc"); ok {
				return product, nil
			}
		}
	}
	return "", nil
}

func (m *fakeMemory) LastSignificantUserQuery(ctx context.Context, sessionID string) (string, error) {
	fallback := ""
	for i := len(m.turns) - 1; i >= 0; i-- {
		turn := m.turns[i]
		if turn.sessionID != sessionID || len(strings.TrimSpace(turn.userText)) < 6 {
			continue
		}
		if len(turn.docIDs) > 0 {
			return turn.userText, nil
		}
		if fallback == "" {
			fallback = turn.userText
		}
	}
	return fallback, nil
}

// fakeRetriever serves chunks per product restriction. The empty product key
// is the unrestricted pool.
type fakeRetriever struct {
	byProduct map[string][]*schema.Chunk
	calls     []string // product of each call, in order
	lastQuery string
}

func (r *fakeRetriever) Search(ctx context.Context, query string, recentDocIDs []string, product string) ([]*schema.Chunk, error) {
	r.calls = append(r.calls, product)
	r.lastQuery = query
	return r.byProduct[product], nil
}

type fakeComposer struct {
	lastMode pipeline.AnswerMode
}

func (c *fakeComposer) Answer(ctx context.Context, chunks []*schema.Chunk, summary string, mode pipeline.AnswerMode) (string, []*schema.Source, error) {
	c.lastMode = mode
	sources := make([]*schema.Source, 0, len(chunks))
	for _, ch := range chunks {
		sources = append(sources, schema.SourceFromChunk(ch))
	}
	return "composed answer", sources, nil
}

type fakeCatalog struct{}

func (fakeCatalog) TopProducts(ctx context.Context, limit int) ([]string, error) {
	return []string{"Omnichannel Inventory", "D2C Commerce"}, nil
}

func omniChunk(id int64) *schema.Chunk {
	return &schema.Chunk{
		ID:          id,
		DocID:       "Omnichannel Inventory-doc",
		DocTitle:    "Omnichannel Inventory Guide",
		Content:     "inventory passage",
		Product:     "Omnichannel Inventory",
		HybridScore: 0.9,
	}
}

func newTestOrchestrator(retriever *fakeRetriever, composer *fakeComposer, memory *fakeMemory) *Orchestrator {
	return New(
		retriever,
		composer,
		memory,
		guardrails.NewAdvisor(fakeCatalog{}),
		config.MemoryConfig{RecentTurns: 5, ProductScanTurns: 50, ChunkScanTurns: 200},
		logger.New("orchestrator-test", "", ""),
	)
}

func TestGreetingTurn(t *testing.T) {
	memory := newFakeMemory()
	o := newTestOrchestrator(&fakeRetriever{}, &fakeComposer{}, memory)

	answer, err := o.RunChat(context.Background(), "s1", "hi", "")
	if err != nil {
		t.Fatalf("run chat failed: %v", err)
	}
	if !strings.Contains(answer.Answer, "Salesforce Help") {
		t.Fatalf("expected welcome message, got %q", answer.Answer)
	}
	if len(answer.Sources) != 0 {
		t.Fatal("greeting must carry no sources")
	}
	if len(memory.turns) != 1 || len(memory.turns[0].docIDs) != 0 || len(memory.turns[0].chunkIDs) != 0 {
		t.Fatal("greeting turn must be logged with empty id lists")
	}
}

func TestGoodbyeTurn(t *testing.T) {
	memory := newFakeMemory()
	o := newTestOrchestrator(&fakeRetriever{}, &fakeComposer{}, memory)

	answer, err := o.RunChat(context.Background(), "s1", "ok bye then", "")
	if err != nil {
		t.Fatalf("run chat failed: %v", err)
	}
	if !strings.Contains(answer.Answer, "Goodbye") {
		t.Fatalf("expected farewell, got %q", answer.Answer)
	}
}

func TestSubstantiveTurnWithResults(t *testing.T) {
	retriever := &fakeRetriever{byProduct: map[string][]*schema.Chunk{
		"": {omniChunk(1), omniChunk(2)},
	}}
	composer := &fakeComposer{}
	memory := newFakeMemory()
	o := newTestOrchestrator(retriever, composer, memory)

	answer, err := o.RunChat(context.Background(), "s1", "How do I set up Omnichannel Inventory?", "")
	if err != nil {
		t.Fatalf("run chat failed: %v", err)
	}
	if _, ok := composer.lastMode.(pipeline.ModeDefault); !ok {
		t.Fatal("substantive turn must use the default mode")
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(answer.Sources))
	}
	// no explicit product from the caller, so the majority tip is appended
	if !strings.Contains(answer.Answer, `product="Omnichannel Inventory"`) {
		t.Fatalf("expected majority product tip, got %q", answer.Answer)
	}
	turn := memory.turns[len(memory.turns)-1]
	if len(turn.docIDs) != 1 || turn.docIDs[0] != "Omnichannel Inventory-doc" {
		t.Fatalf("used doc ids not logged: %v", turn.docIDs)
	}
	if len(turn.chunkIDs) != 2 {
		t.Fatalf("used chunk ids not logged: %v", turn.chunkIDs)
	}
	summary := memory.sessions["s1"]
	if !strings.HasPrefix(summary, "User is asking about: How do I set up Omnichannel Inventory?.") {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if !strings.Contains(summary, "Recent topics: Omnichannel Inventory Guide") {
		t.Fatalf("summary missing topics: %q", summary)
	}
}

func TestSubstantiveTurnExplicitProductSkipsTip(t *testing.T) {
	retriever := &fakeRetriever{byProduct: map[string][]*schema.Chunk{
		"Omnichannel Inventory": {omniChunk(1)},
	}}
	memory := newFakeMemory()
	o := newTestOrchestrator(retriever, &fakeComposer{}, memory)

	answer, err := o.RunChat(context.Background(), "s1", "How do I set up inventory sync?", "Omnichannel Inventory")
	if err != nil {
		t.Fatalf("run chat failed: %v", err)
	}
	if strings.Contains(answer.Answer, "Tip:") {
		t.Fatalf("explicit product must suppress the tip: %q", answer.Answer)
	}
	if retriever.calls[0] != "Omnichannel Inventory" {
		t.Fatalf("explicit product not forwarded to retrieval: %q", retriever.calls[0])
	}
}

func TestLowInfoWithProductRetriesUnrestricted(t *testing.T) {
	// restricted pool is empty, unrestricted has matches from another product
	other := &schema.Chunk{ID: 9, DocID: "other-doc-id", DocTitle: "Sales Basics", Content: "c", Product: "Sales Cloud", HybridScore: 0.5}
	retriever := &fakeRetriever{byProduct: map[string][]*schema.Chunk{
		"": {other},
	}}
	composer := &fakeComposer{}
	memory := newFakeMemory()
	// seed a prior substantive turn so a product and query can be recalled
	_ = memory.InsertTurn(context.Background(), "s1", "How do I set up Omnichannel Inventory?", "a", []string{"Omnichannel Inventory-doc"}, []int64{1})

	o := newTestOrchestrator(retriever, composer, memory)
	answer, err := o.RunChat(context.Background(), "s1", "tell me more", "")
	if err != nil {
		t.Fatalf("run chat failed: %v", err)
	}
	if len(retriever.calls) != 2 || retriever.calls[0] != "Omnichannel Inventory" || retriever.calls[1] != "" {
		t.Fatalf("expected restricted then unrestricted retrieval, got %v", retriever.calls)
	}
	if _, ok := composer.lastMode.(pipeline.ModeOverview); !ok {
		t.Fatal("low-info with product must use overview mode")
	}
	if retriever.lastQuery != "How do I set up Omnichannel Inventory?" {
		t.Fatalf("overview must reuse the last significant query, got %q", retriever.lastQuery)
	}
	// the result set does not contain the product, so the soft banner is used
	if !strings.HasPrefix(answer.Answer, "Continuing (closest matches).") {
		t.Fatalf("expected closest-matches banner, got %q", answer.Answer)
	}
}

func TestLowInfoWithProductMatchingBanner(t *testing.T) {
	retriever := &fakeRetriever{byProduct: map[string][]*schema.Chunk{
		"Omnichannel Inventory": {omniChunk(1)},
	}}
	memory := newFakeMemory()
	_ = memory.InsertTurn(context.Background(), "s1", "How do I set up Omnichannel Inventory?", "a", []string{"Omnichannel Inventory-doc"}, []int64{1})

	o := newTestOrchestrator(retriever, &fakeComposer{}, memory)
	answer, err := o.RunChat(context.Background(), "s1", "tell me more", "")
	if err != nil {
		t.Fatalf("run chat failed: %v", err)
	}
	if !strings.HasPrefix(answer.Answer, "Continuing with Omnichannel Inventory.") {
		t.Fatalf("expected product banner, got %q", answer.Answer)
	}
}

func TestLowInfoNoProductClarifies(t *testing.T) {
	memory := newFakeMemory()
	o := newTestOrchestrator(&fakeRetriever{}, &fakeComposer{}, memory)

	answer, err := o.RunChat(context.Background(), "s1", "tell me more", "")
	if err != nil {
		t.Fatalf("run chat failed: %v", err)
	}
	if !strings.Contains(answer.Answer, "product areas") {
		t.Fatalf("clarification must reference product areas, got %q", answer.Answer)
	}
	if len(answer.Sources) != 0 {
		t.Fatal("clarification must carry no sources")
	}
}

// End-to-end walk through a session: greeting, vague follow-up without
// context, a question with no matching chunks, the same question once
// chunks exist, then a vague follow-up that resolves to the product.
func TestConversationScenario(t *testing.T) {
	ctx := context.Background()
	retriever := &fakeRetriever{byProduct: map[string][]*schema.Chunk{}}
	composer := &fakeComposer{}
	memory := newFakeMemory()
	o := newTestOrchestrator(retriever, composer, memory)

	// 1. greeting
	answer, err := o.RunChat(ctx, "S", "hi", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(answer.Sources) != 0 || len(memory.turns[0].docIDs) != 0 {
		t.Fatal("turn 1: greeting must log empty id lists")
	}

	// 2. low-info with no prior product
	answer, err = o.RunChat(ctx, "S", "tell me more", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(answer.Answer, "Omnichannel Inventory") {
		t.Fatal("turn 2: clarification should list example product areas")
	}
	if len(answer.Sources) != 0 {
		t.Fatal("turn 2: no sources expected")
	}

	// 3. substantive question against an empty store
	answer, err = o.RunChat(ctx, "S", "How do I set up Omnichannel Inventory?", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(answer.Sources) != 0 {
		t.Fatal("turn 3: empty retrieval must produce a clarification without sources")
	}

	// 4. same question once matching chunks exist
	retriever.byProduct[""] = []*schema.Chunk{omniChunk(1), omniChunk(2)}
	retriever.byProduct["Omnichannel Inventory"] = []*schema.Chunk{omniChunk(1), omniChunk(2)}
	answer, err = o.RunChat(ctx, "S", "How do I set up Omnichannel Inventory?", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(answer.Sources) == 0 {
		t.Fatal("turn 4: expected a grounded answer with sources")
	}
	for _, s := range answer.Sources {
		if s.DocID != "Omnichannel Inventory-doc" {
			t.Fatalf("turn 4: source references wrong doc: %q", s.DocID)
		}
	}
	lastTurn := memory.turns[len(memory.turns)-1]
	if len(lastTurn.docIDs) == 0 {
		t.Fatal("turn 4: used doc ids must be logged")
	}

	// 5. vague follow-up now resolves to the product and yields an overview
	answer, err = o.RunChat(ctx, "S", "tell me more", "")
	if err != nil {
		t.Fatal(err)
	}
	ov, ok := composer.lastMode.(pipeline.ModeOverview)
	if !ok {
		t.Fatal("turn 5: expected overview mode")
	}
	if ov.Product != "Omnichannel Inventory" {
		t.Fatalf("turn 5: expected resolved product, got %q", ov.Product)
	}
	if !strings.HasPrefix(answer.Answer, "Continuing with Omnichannel Inventory.") {
		t.Fatalf("turn 5: expected product banner, got %q", answer.Answer)
	}
}

func TestSummaryTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	summary := makeSummary(long, []string{"a", "b", "c", "d"})
	if len(summary) > len("User is asking about: ")+summaryTextLimit+len(". Recent topics: a, b, c.") {
		t.Fatalf("summary not truncated: %d chars", len(summary))
	}
	if !strings.Contains(summary, "Recent topics: a, b, c.") {
		t.Fatalf("topics not capped at three: %q", summary)
	}
}

func TestSameProductPattern(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"what about the same product", true},
		{"does this one support returns and exchanges", true},
		{"compare that product with others", true},
		{"what products exist", false},
	}
	for _, tc := range cases {
		if got := sameProductRe.MatchString(tc.text); got != tc.want {
			t.Errorf("sameProductRe(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
