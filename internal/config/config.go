// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，由 Init 填充。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	CrossEncoder  CrossEncoderConfig  `mapstructure:"cross_encoder"`
	Sparse        SparseConfig        `mapstructure:"sparse"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储服务令牌相关的配置。Secret 为空时 API 不做鉴权。
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
	Issuer           string `mapstructure:"issuer"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
	Dims      int    `mapstructure:"dims"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	BatchSize int    `mapstructure:"batch_size"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// CrossEncoderConfig 存储重排序模型服务的配置。
type CrossEncoderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SparseConfig 存储稀疏编码器（BM25 / TF-IDF）的配置。
type SparseConfig struct {
	Algorithm  string  `mapstructure:"algorithm"`
	ModelPath  string  `mapstructure:"model_path"`
	ObjectName string  `mapstructure:"object_name"`
	MaxTerms   int     `mapstructure:"max_terms"`
	K1         float64 `mapstructure:"k1"`
	B          float64 `mapstructure:"b"`
}

// RetrievalConfig 存储检索编排相关的配置。
type RetrievalConfig struct {
	Mock           bool          `mapstructure:"mock"`
	DefaultK       int           `mapstructure:"default_k"`
	ExpandToN      int           `mapstructure:"expand_to_n"`
	UseSparse      bool          `mapstructure:"use_sparse"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
	BranchTimeout  time.Duration `mapstructure:"branch_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.token_expire_hours", 24*30)
	v.SetDefault("jwt.issuer", "legal-rag")
	v.SetDefault("kafka.topic", "legal-chunk-index")
	v.SetDefault("kafka.group_id", "legal-rag-indexer")
	v.SetDefault("elasticsearch.index_name", "legal_chunks")
	v.SetDefault("elasticsearch.dims", 1024)
	v.SetDefault("minio.bucket_name", "legal-rag")
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("llm.cache_ttl", 24*time.Hour)
	v.SetDefault("cross_encoder.timeout", 30*time.Second)
	v.SetDefault("sparse.algorithm", "tfidf")
	v.SetDefault("sparse.model_path", "models")
	v.SetDefault("sparse.max_terms", 128)
	v.SetDefault("sparse.k1", 1.5)
	v.SetDefault("sparse.b", 0.75)
	v.SetDefault("retrieval.default_k", 9)
	v.SetDefault("retrieval.expand_to_n", 3)
	v.SetDefault("retrieval.use_sparse", true)
	v.SetDefault("retrieval.worker_pool_size", 16)
	v.SetDefault("retrieval.branch_timeout", 30*time.Second)
}

// Load 从指定路径读取 YAML 配置，环境变量 LEGALRAG_* 可覆盖文件中的值。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LEGALRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

// Init 加载配置并写入全局 Conf，失败时 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// SparseModelFile 返回本地稀疏模型文件路径，例如 models/sparse_bm25_model.bin。
func (c SparseConfig) SparseModelFile() string {
	return fmt.Sprintf("%s/sparse_%s_model.bin", strings.TrimRight(c.ModelPath, "/"), strings.ToLower(c.Algorithm))
}

// SparseObjectName 返回 MinIO 中的对象名，未配置时按算法生成。
func (c SparseConfig) SparseObjectName() string {
	if c.ObjectName != "" {
		return c.ObjectName
	}
	return fmt.Sprintf("models/sparse_%s_model.bin", strings.ToLower(c.Algorithm))
}
