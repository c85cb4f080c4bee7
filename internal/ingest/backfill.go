package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"SFHelp_Agent/internal/models"

	"gorm.io/gorm/clause"
)

// BackfillDocMeta rebuilds the document metadata table from the chunk
// files and stamps product and filename onto already-ingested chunks. The
// product of a document is the name of the folder its file sits in. Safe to
// rerun, every upsert fully overwrites the previous descriptor.
func (p *Pipeline) BackfillDocMeta(ctx context.Context) error {
	files, err := p.findJSONLFiles()
	if err != nil {
		return err
	}

	// last occurrence of a doc id wins, matching the file walk order
	byDocID := make(map[string]models.HelpDoc)
	var order []string
	for _, path := range files {
		doc, ok, err := p.readDocHeader(path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, seen := byDocID[doc.DocID]; !seen {
			order = append(order, doc.DocID)
		}
		byDocID[doc.DocID] = doc
	}
	p.log.Info(fmt.Sprintf("Found %d documents to backfill", len(byDocID)))

	for _, docID := range order {
		doc := byDocID[docID]
		err := p.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "doc_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"doc_title", "product", "filename", "relpath"}),
			}).
			Create(&doc).Error
		if err != nil {
			return fmt.Errorf("failed to upsert doc %s: %w", doc.DocID, err)
		}

		err = p.db.WithContext(ctx).
			Model(&models.HelpChunk{}).
			Where("doc_id = ? AND (product <> ? OR filename <> ?)", doc.DocID, doc.Product, doc.Filename).
			Updates(map[string]interface{}{"product": doc.Product, "filename": doc.Filename}).Error
		if err != nil {
			return fmt.Errorf("failed to stamp chunks of doc %s: %w", doc.DocID, err)
		}
	}
	p.log.Info("Document metadata backfill complete")
	return nil
}

// readDocHeader pulls doc id and title from the first non-empty line of a
// chunk file. Files without a usable first record are skipped with a
// warning instead of failing the whole backfill.
func (p *Pipeline) readDocHeader(path string) (models.HelpDoc, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.HelpDoc{}, false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.DocID == "" {
			p.log.WithField("file", path).Warn("File has no usable first record, skipping")
			return models.HelpDoc{}, false, nil
		}

		relpath, relErr := filepath.Rel(p.cfg.DataDir, path)
		if relErr != nil {
			relpath = filepath.Base(path)
		}
		return models.HelpDoc{
			DocID:    rec.DocID,
			DocTitle: rec.DocTitle,
			Product:  filepath.Base(filepath.Dir(path)),
			Filename: filepath.Base(path),
			Relpath:  relpath,
		}, true, nil
	}
	if err := scanner.Err(); err != nil {
		return models.HelpDoc{}, false, err
	}
	return models.HelpDoc{}, false, nil
}
