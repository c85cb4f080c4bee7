package main

import (
	"context"
	"flag"
	"log"

	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/internal/database/mysql"
	"SFHelp_Agent/internal/ingest"
	"SFHelp_Agent/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Rebuilds the help_docs table from the chunk JSONL files and stamps
// product/filename onto already-ingested chunks, without touching the
// vector store.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	dataDir := flag.String("data-dir", "", "override the chunk JSONL directory from the config")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.Ingest.DataDir = *dataDir
	}

	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("BackfillDocMeta", "", "")

	db, err := mysql.GetDB(&cfg.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	if err := mysql.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate MySQL schema: %v", err)
	}

	pipeline := ingest.NewPipeline(db, nil, nil, cfg.Ingest, appLogger)
	if err := pipeline.BackfillDocMeta(context.Background()); err != nil {
		log.Fatalf("Metadata backfill failed: %v", err)
	}
}
