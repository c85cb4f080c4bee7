package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address string `yaml:"address"` // 监听地址 (例如: ":8080")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "debug", "info", "warn")
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MilvusConfig 定义了 Milvus 向量库的连接和集合配置。
type MilvusConfig struct {
	Address    string `yaml:"address"`    // Milvus 服务地址
	Collection string `yaml:"collection"` // 集合名称
	Dim        int    `yaml:"dim"`        // 向量维度
}

// ProviderConfig 包含了单个模型提供商的配置。
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	Model   string `yaml:"model"`   // 模型名称
	BaseURL string `yaml:"baseURL"` // 服务基准 URL (仅 Ollama 需要)
}

// EmbeddingConfig 包含了不同 Embedding 提供商的配置。
type EmbeddingConfig struct {
	Provider   string         `yaml:"provider"`   // Embedding 提供商 ("openai", "gemini", "ollama")
	OpenAI     ProviderConfig `yaml:"openai"`     // OpenAI 模型配置
	Gemini     ProviderConfig `yaml:"gemini"`     // Gemini 模型配置
	Ollama     ProviderConfig `yaml:"ollama"`     // Ollama 模型配置
	MaxRetries int            `yaml:"maxRetries"` // 请求失败后的最大重试次数
}

// LLMConfig 包含了不同 LLM 提供商的配置。
type LLMConfig struct {
	Provider   string         `yaml:"provider"`   // LLM 提供商 ("openai", "gemini", "ollama")
	OpenAI     ProviderConfig `yaml:"openai"`     // OpenAI 模型配置
	Gemini     ProviderConfig `yaml:"gemini"`     // Gemini 模型配置
	Ollama     ProviderConfig `yaml:"ollama"`     // Ollama 模型配置
	MaxRetries int            `yaml:"maxRetries"` // 请求失败后的最大重试次数
}

// RetrievalConfig 定义了混合检索的调优参数。
type RetrievalConfig struct {
	TopKVector     int     `yaml:"topKVector"`     // 向量候选池大小
	TopKFts        int     `yaml:"topKFts"`        // 全文检索候选池大小
	TopKFinal      int     `yaml:"topKFinal"`      // 最终返回并送入 LLM 的块数
	HybridAlpha    float64 `yaml:"hybridAlpha"`    // 全文检索分量在混合评分中的权重
	MinRelevance   float64 `yaml:"minRelevance"`   // 向量距离的相关性上限（护栏）
	MemoryDocBoost float64 `yaml:"memoryDocBoost"` // 近期引用过的文档的附加分
}

// MemoryConfig 定义了会话记忆的检索窗口。
type MemoryConfig struct {
	RecentTurns      int `yaml:"recentTurns"`      // 取最近多少轮的文档引用
	ProductScanTurns int `yaml:"productScanTurns"` // 第一层产品推断扫描的轮数
	ChunkScanTurns   int `yaml:"chunkScanTurns"`   // 第二层产品推断扫描的轮数
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`  // 是否启用限流
	Rate     float64 `yaml:"rate"`     // 每秒生成的令牌数
	Capacity int     `yaml:"capacity"` // 令牌桶容量（突发上限）
}

// IngestConfig 定义了离线入库命令的配置。
type IngestConfig struct {
	DataDir   string `yaml:"dataDir"`   // 分块 JSONL 文件根目录
	BatchSize int    `yaml:"batchSize"` // 每批发送给 Embedding 服务的块数
}

// AppConfig 是应用程序的顶层配置。
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`    // HTTP 服务配置
	Logger    LoggerConfig      `yaml:"logger"`    // 日志记录器配置
	MySQL     MySQLConfig       `yaml:"mysql"`     // MySQL 配置
	Milvus    MilvusConfig      `yaml:"milvus"`    // Milvus 配置
	Embedding EmbeddingConfig   `yaml:"embedding"` // Embedding 网关配置
	LLM       LLMConfig         `yaml:"llm"`       // LLM 网关配置
	Retrieval RetrievalConfig   `yaml:"retrieval"` // 检索参数
	Memory    MemoryConfig      `yaml:"memory"`    // 会话记忆参数
	Limiter   RateLimiterConfig `yaml:"limiter"`   // 限流配置
	Ingest    IngestConfig      `yaml:"ingest"`    // 入库配置
}

// DefaultConfig 返回一份每个字段都有显式默认值的完整配置。
// 配置加载后即为全量，业务代码不需要任何运行时兜底。
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Address: ":8080"},
		Logger: LoggerConfig{Level: "info"},
		MySQL: MySQLConfig{
			Address:         "localhost:3306",
			Username:        "root",
			Password:        "",
			Database:        "sfhelp",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Milvus: MilvusConfig{
			Address:    "localhost:19530",
			Collection: "help_chunks_vec",
			Dim:        1536,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			OpenAI:     ProviderConfig{Model: "text-embedding-3-small"},
			Gemini:     ProviderConfig{Model: "text-embedding-004"},
			Ollama:     ProviderConfig{Model: "nomic-embed-text", BaseURL: "http://localhost:11434"},
			MaxRetries: 5,
		},
		LLM: LLMConfig{
			Provider:   "openai",
			OpenAI:     ProviderConfig{Model: "gpt-4o-mini"},
			Gemini:     ProviderConfig{Model: "gemini-1.5-flash"},
			Ollama:     ProviderConfig{Model: "llama3.1", BaseURL: "http://localhost:11434"},
			MaxRetries: 3,
		},
		Retrieval: RetrievalConfig{
			TopKVector:     50,
			TopKFts:        50,
			TopKFinal:      8,
			HybridAlpha:    0.35,
			MinRelevance:   0.25,
			MemoryDocBoost: 0.03,
		},
		Memory: MemoryConfig{
			RecentTurns:      5,
			ProductScanTurns: 50,
			ChunkScanTurns:   200,
		},
		Limiter: RateLimiterConfig{
			Enabled:  true,
			Rate:     10,
			Capacity: 20,
		},
		Ingest: IngestConfig{
			DataDir:   "text_files",
			BatchSize: 64,
		},
	}
}

// LoadConfig 读取 YAML 配置文件并在默认配置之上做增量覆盖。
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}

	// 将 YAML 内容解析到 cfg 结构体中，未出现的字段保留默认值。
	if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	return cfg, nil
}
