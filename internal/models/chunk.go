package models

import "time"

// HelpChunk is one retrievable unit of help-document text. Rows are written
// once at ingestion time; only Product and Filename are backfilled later.
// The embedding itself lives in Milvus under the same ID, the relational row
// carries the text and position metadata plus the FULLTEXT index used by
// lexical search.
type HelpChunk struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	DocID        string `gorm:"size:128;not null;index;uniqueIndex:uq_doc_sectionpage_chunk,priority:1"`
	DocTitle     string `gorm:"size:512"`
	SectionTitle string `gorm:"size:512;uniqueIndex:uq_doc_sectionpage_chunk,priority:3;index:ftx_section_content,class:FULLTEXT,priority:1"`
	SectionLevel int
	PageStart    int `gorm:"uniqueIndex:uq_doc_sectionpage_chunk,priority:2"`
	PageEnd      int
	ChunkLocalID int    `gorm:"uniqueIndex:uq_doc_sectionpage_chunk,priority:4"`
	Content      string `gorm:"type:longtext;not null;index:ftx_section_content,class:FULLTEXT,priority:2"`
	Product      string `gorm:"size:128;index"` // backfilled, may be empty
	Filename     string `gorm:"size:255"`       // backfilled, may be empty
	CreatedAt    time.Time
}

// TableName maps HelpChunk to its table.
func (HelpChunk) TableName() string { return "help_chunks" }

// HelpDoc is the per-document descriptor maintained by the metadata backfill.
// It is read-only from the agent's perspective.
type HelpDoc struct {
	DocID     string `gorm:"primaryKey;size:128"`
	DocTitle  string `gorm:"size:512"`
	Product   string `gorm:"size:128;index"`
	Filename  string `gorm:"size:255"`
	Relpath   string `gorm:"size:512"`
	UpdatedAt time.Time
}

// TableName maps HelpDoc to its table.
func (HelpDoc) TableName() string { return "help_docs" }
