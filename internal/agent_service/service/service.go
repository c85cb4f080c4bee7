package service

import (
	"context"
	"fmt"

	"SFHelp_Agent/internal/agent_service/agent/guardrails"
	"SFHelp_Agent/internal/agent_service/agent/orchestrator"
	"SFHelp_Agent/internal/agent_service/agent/pipeline"
	"SFHelp_Agent/internal/agent_service/agent/schema"
	"SFHelp_Agent/internal/agent_service/agent/storages/candidatestore"
	"SFHelp_Agent/internal/agent_service/agent/storages/memstore"
	"SFHelp_Agent/internal/config"
	milvusdb "SFHelp_Agent/internal/database/milvus"
	"SFHelp_Agent/internal/embedding"
	"SFHelp_Agent/internal/llm"
	"SFHelp_Agent/pkg/logger"

	"gorm.io/gorm"
)

// Service 将存储、模型网关与对话编排组装成对外的问答能力。
// 一个进程内只组装一次，各请求共享同一套组件。
type Service struct {
	ranker       *pipeline.HybridRanker
	orchestrator *orchestrator.Orchestrator
	candidates   *candidatestore.Store
	db           *gorm.DB
	milvus       *milvusdb.MilvusClient
	log          *logger.Logger
}

// New 根据配置装配整套问答服务。
func New(cfg *config.AppConfig, db *gorm.DB, milvus *milvusdb.MilvusClient, log *logger.Logger) (*Service, error) {
	embedModel, err := embedding.NewEmdModel(cfg.Embedding, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding model: %w", err)
	}
	llmClient, err := llm.NewClient(cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	candidates := candidatestore.New(db, milvus, log)
	memory := memstore.New(db, cfg.Memory, log)

	ranker := pipeline.NewHybridRanker(embedModel, candidates, cfg.Retrieval, log)
	composer := pipeline.NewComposer(llmClient, cfg.Retrieval.TopKFinal, log)
	advisor := guardrails.NewAdvisor(candidates)

	return &Service{
		ranker:       ranker,
		orchestrator: orchestrator.New(ranker, composer, memory, advisor, cfg.Memory, log),
		candidates:   candidates,
		db:           db,
		milvus:       milvus,
		log:          log,
	}, nil
}

// RunChat 处理一轮对话。
func (s *Service) RunChat(ctx context.Context, sessionID, message, product string) (*schema.ChatAnswer, error) {
	return s.orchestrator.RunChat(ctx, sessionID, message, product)
}

// Search 直接运行混合检索，不读写会话记忆。
func (s *Service) Search(ctx context.Context, query, product string) ([]*schema.Chunk, error) {
	return s.ranker.Search(ctx, query, nil, product)
}

// Products 列出语料库中的产品标签。
func (s *Service) Products(ctx context.Context) ([]string, error) {
	return s.candidates.Products(ctx)
}

// Health 逐项探测依赖存储。
func (s *Service) Health(ctx context.Context) map[string]bool {
	status := map[string]bool{"mysql": true, "milvus": true}

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["mysql"] = false
	}
	if err := s.milvus.HealthCheck(ctx); err != nil {
		status["milvus"] = false
	}
	return status
}
