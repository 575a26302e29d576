package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// セッションストアの種類
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// ベクトルストアの種類
const (
	VectorPgvector = "pgvector"
	VectorQdrant   = "qdrant"
	VectorMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Database DatabaseConfig
	Session  SessionConfig
	Vector   VectorConfig
	OpenAI   OpenAIConfig
	Local    LocalConfig
	Chunking ChunkingConfig
	Provider ProviderConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Git      GitConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// SessionConfig は会話履歴ストアの設定
type SessionConfig struct {
	Store      string // "postgres", "sqlite" or "memory"
	SQLitePath string
}

// VectorConfig はベクトルストアと検索の設定
type VectorConfig struct {
	Store            string // "pgvector", "qdrant" or "memory"
	QdrantHost       string
	QdrantPort       int
	TopK             int
	EmbedConcurrency int
}

// OpenAIConfig はOpenAI API設定（Embeddings + LLM）
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	APIKeyPrefix       string
	APIKeyLength       int // 0 の場合は長さを検査しない
	RequestsPerMinute  int // 0 は無制限
	MaxRetries         int
	PricingFile        string
}

// LocalConfig はローカルモデルの設定
type LocalConfig struct {
	LLMBaseURL         string
	WeightsDir         string
	EmbeddingDimension int
}

// ChunkingConfig は取り込み時の分割設定
type ChunkingConfig struct {
	Size       int
	Overlap    int
	Extensions []string
}

// ProviderConfig はプロバイダ呼び出し共通の設定
type ProviderConfig struct {
	Timeout time.Duration
}

// HTTPConfig はHTTPサーバー設定
type HTTPConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// GitConfig はGit操作設定
type GitConfig struct {
	CloneDir    string
	SSHKeyPath  string
	SSHPassword string // SSH秘密鍵のパスワード（パスフレーズ）
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvAsInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "chatrag"),
			Password:    getEnv("DB_PASSWORD", ""),
			DBName:      getEnv("DB_NAME", "chatrag"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Session: SessionConfig{
			Store:      strings.ToLower(getEnv("SESSION_STORE", StorePostgres)),
			SQLitePath: getEnv("SQLITE_PATH", "sqlite.db"),
		},
		Vector: VectorConfig{
			Store:            strings.ToLower(getEnv("VECTOR_STORE", VectorPgvector)),
			QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:       getEnvAsInt("QDRANT_PORT", 6334),
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 4),
			EmbedConcurrency: getEnvAsInt("EMBED_CONCURRENCY", 2),
		},
		OpenAI: OpenAIConfig{
			APIKey:             os.Getenv("OPENAI_API_KEY"),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-3.5-turbo"),
			APIKeyPrefix:       getEnv("OPENAI_API_KEY_PREFIX", "sk"),
			APIKeyLength:       getEnvAsInt("OPENAI_API_KEY_LENGTH", 51),
			RequestsPerMinute:  getEnvAsInt("OPENAI_REQUESTS_PER_MINUTE", 0),
			MaxRetries:         getEnvAsInt("OPENAI_MAX_RETRIES", 0),
			PricingFile:        getEnv("LLM_PRICING_FILE", ""),
		},
		Local: LocalConfig{
			LLMBaseURL:         getEnv("LOCAL_LLM_BASE_URL", "http://localhost:8081/v1"),
			WeightsDir:         getEnv("LOCAL_LLM_WEIGHTS_DIR", "llms"),
			EmbeddingDimension: getEnvAsInt("LOCAL_EMBEDDING_DIMENSION", 384),
		},
		Chunking: ChunkingConfig{
			Size:       getEnvAsInt("CHUNK_SIZE", 80),
			Overlap:    getEnvAsInt("CHUNK_OVERLAP", 20),
			Extensions: getEnvAsList("INGEST_EXTENSIONS", []string{".txt"}),
		},
		Provider: ProviderConfig{
			Timeout: getEnvAsDuration("PROVIDER_TIMEOUT", 60*time.Second),
		},
		HTTP: HTTPConfig{
			Port:            getEnvAsInt("HTTP_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Git: GitConfig{
			CloneDir:    getEnv("GIT_CLONE_DIR", ""),
			SSHKeyPath:  getEnv("GIT_SSH_KEY_PATH", ""),
			SSHPassword: getEnv("GIT_SSH_PASSWORD", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の組み合わせを検証します
func (c *Config) Validate() error {
	var errs []error

	switch c.Session.Store {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store))
	}
	switch c.Vector.Store {
	case VectorPgvector, VectorQdrant, VectorMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_STORE %q", c.Vector.Store))
	}
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.Chunking.Overlap))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.Provider.Timeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// UsesPostgres はいずれかのストアが PostgreSQL を使うかどうかを返します
func (c *Config) UsesPostgres() bool {
	return c.Session.Store == StorePostgres || c.Vector.Store == VectorPgvector
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を時間として取得します。単位のない数値は秒として扱います
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
