package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SFHelp_Agent/internal/agent_service/api"
	"SFHelp_Agent/internal/agent_service/service"
	"SFHelp_Agent/internal/config"
	"SFHelp_Agent/internal/database/milvus"
	"SFHelp_Agent/internal/database/mysql"
	"SFHelp_Agent/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("AgentService", "", "")
	appLogger.Info("Starting Agent Service...")

	// 3. Initialize Dependencies
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
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to ensure Milvus collection: %v", err)
	}

	// 4. Assemble the service and router
	svc, err := service.New(cfg, db, milvusClient, appLogger)
	if err != nil {
		log.Fatalf("Failed to assemble service: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(api.NewHandler(svc), cfg.Limiter)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	// 5. Start HTTP Server in a goroutine
	go func() {
		appLogger.Info(fmt.Sprintf("HTTP server listening at %s", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	milvusClient.Close()
	if err := mysql.Close(); err != nil {
		appLogger.WithError(err).Warn("Failed to close MySQL connection")
	}

	appLogger.Info("Server gracefully stopped")
}
