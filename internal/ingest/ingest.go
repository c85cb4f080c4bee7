package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/internal/config"
	milvusdb "SFHelp_Agent/internal/database/milvus"
	"SFHelp_Agent/internal/embedding"
	"SFHelp_Agent/internal/models"
	"SFHelp_Agent/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one line of a chunk JSONL file produced by the PDF extraction
// step. The text field becomes the chunk content.
type Record struct {
	DocID        string `json:"doc_id"`
	DocTitle     string `json:"doc_title"`
	SectionTitle string `json:"section_title"`
	SectionLevel int    `json:"section_level"`
	PageStart    int    `json:"page_start"`
	PageEnd      int    `json:"page_end"`
	ChunkLocalID int    `json:"chunk_local_id"`
	Text         string `json:"text"`
}

// Pipeline loads chunk JSONL files into MySQL and Milvus. Rows already
// present (same doc, page, section and local id) are skipped, so reruns
// over the same data directory are safe.
type Pipeline struct {
	db       *gorm.DB
	milvus   *milvusdb.MilvusClient
	embedder embedding.Embedding
	cfg      config.IngestConfig
	log      *logger.Logger
}

// NewPipeline creates an ingestion Pipeline.
func NewPipeline(db *gorm.DB, milvus *milvusdb.MilvusClient, embedder embedding.Embedding, cfg config.IngestConfig, log *logger.Logger) *Pipeline {
	return &Pipeline{db: db, milvus: milvus, embedder: embedder, cfg: cfg, log: log}
}

// Run walks the data directory and ingests every *.jsonl file under it.
// The parent directory of each file names the product its chunks belong to.
func (p *Pipeline) Run(ctx context.Context) error {
	files, err := p.findJSONLFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .jsonl files found under %s", p.cfg.DataDir)
	}
	p.log.Info(fmt.Sprintf("Found %d chunk files under %s", len(files), p.cfg.DataDir))

	total := 0
	for _, file := range files {
		n, err := p.ingestFile(ctx, file)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", file, err)
		}
		total += n
	}
	p.log.Info(fmt.Sprintf("Ingestion complete, %d new chunks inserted", total))
	return nil
}

func (p *Pipeline) findJSONLFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.cfg.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", p.cfg.DataDir, err)
	}
	return files, nil
}

// ingestFile reads one JSONL file and flushes it in batches. Returns the
// number of newly inserted chunks.
func (p *Pipeline) ingestFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	product := filepath.Base(filepath.Dir(path))
	filename := filepath.Base(path)
	p.log.WithField("file", filename).Info("Ingesting chunk file")

	inserted := 0
	var batch []Record

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return inserted, fmt.Errorf("%w: bad JSONL line in %s: %v", schema.ErrMalformedRecord, filename, err)
		}
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		if rec.DocID == "" {
			return inserted, fmt.Errorf("%w: record without doc_id in %s", schema.ErrMalformedRecord, filename)
		}

		batch = append(batch, rec)
		if len(batch) >= p.cfg.BatchSize {
			n, err := p.flushBatch(ctx, batch, product, filename)
			if err != nil {
				return inserted, err
			}
			inserted += n
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return inserted, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if len(batch) > 0 {
		n, err := p.flushBatch(ctx, batch, product, filename)
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

// flushBatch embeds one batch and writes it to both stores. MySQL assigns
// the chunk ids; only rows it actually accepted are mirrored into Milvus,
// duplicates are dropped on the relational side.
func (p *Pipeline) flushBatch(ctx context.Context, batch []Record, product, filename string) (int, error) {
	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("embedding batch size mismatch: %d texts, %d vectors", len(batch), len(vectors))
	}

	var (
		ids        []int64
		docIDs     []string
		products   []string
		embeddings [][]float32
	)
	for i, rec := range batch {
		row := models.HelpChunk{
			DocID:        rec.DocID,
			DocTitle:     rec.DocTitle,
			SectionTitle: rec.SectionTitle,
			SectionLevel: rec.SectionLevel,
			PageStart:    rec.PageStart,
			PageEnd:      rec.PageEnd,
			ChunkLocalID: rec.ChunkLocalID,
			Content:      rec.Text,
			Product:      product,
			Filename:     filename,
		}
		result := p.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if result.Error != nil {
			return 0, fmt.Errorf("failed to insert chunk: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// duplicate from a previous run
			continue
		}
		ids = append(ids, row.ID)
		docIDs = append(docIDs, rec.DocID)
		products = append(products, product)
		embeddings = append(embeddings, vectors[i])
	}
	if len(ids) == 0 {
		return 0, nil
	}

	idCol := entity.NewColumnInt64(milvusdb.FieldID, ids)
	docIDCol := entity.NewColumnVarChar(milvusdb.FieldDocID, docIDs)
	productCol := entity.NewColumnVarChar(milvusdb.FieldProduct, products)
	embeddingCol := entity.NewColumnFloatVector(milvusdb.FieldEmbedding, p.milvus.Config.Dim, embeddings)

	_, err = p.milvus.Client.Insert(ctx, p.milvus.Config.Collection, "", idCol, docIDCol, productCol, embeddingCol)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vectors into Milvus: %w", err)
	}
	return len(ids), nil
}
