package memstore

import (
	"context"
	"testing"

	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/internal/models"
	"SFHelp_Agent/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.ConvoSession{}, &models.ConvoTurn{}, &models.HelpDoc{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	// help_chunks carries a MySQL FULLTEXT index the sqlite driver cannot
	// create, and this store only reads three of its columns.
	err = db.Exec(`CREATE TABLE help_chunks (id INTEGER PRIMARY KEY, doc_id TEXT, product TEXT)`).Error
	if err != nil {
		t.Fatalf("failed to create help_chunks: %v", err)
	}

	cfg := config.MemoryConfig{RecentTurns: 5, ProductScanTurns: 50, ChunkScanTurns: 200}
	return New(db, cfg, logger.New("memstore-test", "", ""))
}

func TestEnsureSessionIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureSession(ctx, "sess-1"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := s.UpdateSummary(ctx, "sess-1", "talking about checkout"); err != nil {
		t.Fatalf("update summary failed: %v", err)
	}
	if err := s.EnsureSession(ctx, "sess-1"); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}

	summary, err := s.Summary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary != "talking about checkout" {
		t.Fatalf("re-ensuring clobbered the summary: %q", summary)
	}
}

func TestSummaryUnknownSession(t *testing.T) {
	s := newTestStore(t)

	summary, err := s.Summary(context.Background(), "missing")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary != "" {
		t.Fatalf("expected empty summary, got %q", summary)
	}
}

func TestRecentDocIDsDistinctAndWindowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureSession(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	mustInsert := func(user string, docs []string, chunks []int64) {
		t.Helper()
		if err := s.InsertTurn(ctx, "sess-1", user, "answer", docs, chunks); err != nil {
			t.Fatalf("insert turn failed: %v", err)
		}
	}

	mustInsert("old question", []string{"doc-old"}, nil)
	mustInsert("q1", []string{"doc-a", "doc-b"}, []int64{1, 2})
	mustInsert("q2", []string{"doc-b"}, []int64{2})
	mustInsert("q3", nil, nil)

	ids, err := s.RecentDocIDs(ctx, "sess-1", 3)
	if err != nil {
		t.Fatalf("recent doc ids failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 distinct ids, got %v", ids)
	}
	// newest citations first, doc-old outside the 3-turn window
	if ids[0] != "doc-b" || ids[1] != "doc-a" {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestInferRecentProductFromDocs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := []models.HelpDoc{
		{DocID: "doc-a", Product: "D2C Commerce"},
		{DocID: "doc-b", Product: "D2C Commerce"},
		{DocID: "doc-c", Product: "Sales Cloud"},
	}
	if err := s.db.Create(&docs).Error; err != nil {
		t.Fatal(err)
	}

	if err := s.EnsureSession(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTurn(ctx, "sess-1", "q1", "answer", []string{"doc-a", "doc-c"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTurn(ctx, "sess-1", "q2", "answer", []string{"doc-b"}, nil); err != nil {
		t.Fatal(err)
	}

	product, err := s.InferRecentProduct(ctx, "sess-1")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if product != "D2C Commerce" {
		t.Fatalf("expected D2C Commerce, got %q", product)
	}
}

func TestInferRecentProductFallsBackToChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.db.Exec(`INSERT INTO help_chunks (id, doc_id, product) VALUES
		(1, 'doc-x', 'Marketing Cloud'),
		(2, 'doc-x', ''),
		(3, 'doc-y', 'Marketing Cloud')`).Error
	if err != nil {
		t.Fatal(err)
	}
	// doc-x resolves chunk 2's empty tag
	if err := s.db.Create(&models.HelpDoc{DocID: "doc-x", Product: "Marketing Cloud"}).Error; err != nil {
		t.Fatal(err)
	}

	if err := s.EnsureSession(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	// turns carry chunk ids but no doc ids, so the first tier yields nothing
	if err := s.InsertTurn(ctx, "sess-1", "q1", "answer", nil, []int64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTurn(ctx, "sess-1", "q2", "answer", nil, []int64{3}); err != nil {
		t.Fatal(err)
	}

	product, err := s.InferRecentProduct(ctx, "sess-1")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if product != "Marketing Cloud" {
		t.Fatalf("expected Marketing Cloud, got %q", product)
	}
}

func TestInferRecentProductEmptySession(t *testing.T) {
	s := newTestStore(t)

	product, err := s.InferRecentProduct(context.Background(), "empty")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	if product != "" {
		t.Fatalf("expected no inference, got %q", product)
	}
}

func TestLastSignificantUserQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureSession(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	turns := []struct {
		user string
		docs []string
	}{
		{"How do I enable managed checkout?", []string{"doc-a"}},
		{"What about shipping rates for my store?", nil},
		{"ok", nil},
	}
	for _, turn := range turns {
		if err := s.InsertTurn(ctx, "sess-1", turn.user, "answer", turn.docs, nil); err != nil {
			t.Fatal(err)
		}
	}

	query, err := s.LastSignificantUserQuery(ctx, "sess-1")
	if err != nil {
		t.Fatalf("query lookup failed: %v", err)
	}
	// the doc-citing turn wins over the newer but citation-less one
	if query != "How do I enable managed checkout?" {
		t.Fatalf("unexpected query: %q", query)
	}
}

func TestLastSignificantUserQueryAllShort(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureSession(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"hi", "ok", "  ye  "} {
		if err := s.InsertTurn(ctx, "sess-1", text, "answer", nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	query, err := s.LastSignificantUserQuery(ctx, "sess-1")
	if err != nil {
		t.Fatalf("query lookup failed: %v", err)
	}
	if query != "" {
		t.Fatalf("expected no significant query, got %q", query)
	}
}
