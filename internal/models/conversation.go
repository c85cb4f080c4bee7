package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConvoSession holds the rolling free-text summary for one chat session.
// It is created on the first turn and its summary is fully overwritten
// after every turn (last write wins, no merge logic).
type ConvoSession struct {
	SessionID string `gorm:"primaryKey;size:128"`
	Summary   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName maps ConvoSession to its table.
func (ConvoSession) TableName() string { return "convo_sessions" }

// ConvoTurn is one append-only entry of the conversation log. Rows are never
// mutated or deleted; insert order defines recency. UsedDocIDs and
// UsedChunkIDs are JSON arrays mirroring the sources the answer was built
// from (empty arrays on guardrail branches).
type ConvoTurn struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	SessionID    string `gorm:"size:128;not null;index"`
	UserText     string `gorm:"type:text"`
	AnswerText   string `gorm:"type:longtext"`
	UsedDocIDs   datatypes.JSON // JSON array of doc id strings
	UsedChunkIDs datatypes.JSON // JSON array of chunk id numbers
	CreatedAt    time.Time `gorm:"index"`
}

// TableName maps ConvoTurn to its table.
func (ConvoTurn) TableName() string { return "convo_turns" }
