package main

import (
	"context"
	"flag"
	"log"

	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/internal/database/milvus"
	"SFHelp_Agent/internal/database/mysql"
	"SFHelp_Agent/internal/embedding"
	"SFHelp_Agent/internal/ingest"
	"SFHelp_Agent/pkg/logger"

	"github.com/sirupsen/logrus"
)

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
	appLogger := logger.New("IngestService", "", "")
	appLogger.Info("Starting chunk ingestion...")

	db, err := mysql.GetDB(&cfg.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	if err := mysql.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate MySQL schema: %v", err)
	}

	ctx := context.Background()
	milvusClient, err := milvus.GetClient(ctx, &cfg.Milvus)
	if err != nil {
		log.Fatalf("Failed to connect to Milvus: %v", err)
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure Milvus collection: %v", err)
	}

	embedModel, err := embedding.NewEmdModel(cfg.Embedding, appLogger)
	if err != nil {
		log.Fatalf("Failed to create embedding model: %v", err)
	}

	pipeline := ingest.NewPipeline(db, milvusClient, embedModel, cfg.Ingest, appLogger)
	if err := pipeline.Run(ctx); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
	if err := pipeline.BackfillDocMeta(ctx); err != nil {
		log.Fatalf("Metadata backfill failed: %v", err)
	}
}
