package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinford/chat-rag/internal/core/chat"
	"github.com/jinford/chat-rag/internal/core/ingestion"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/session"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/jinford/chat-rag/internal/infra/git"
	"github.com/jinford/chat-rag/internal/infra/memory"
	"github.com/jinford/chat-rag/internal/infra/postgres"
	"github.com/jinford/chat-rag/internal/infra/postgres/migrations"
	"github.com/jinford/chat-rag/internal/infra/postgres/sqlc"
	"github.com/jinford/chat-rag/internal/infra/qdrant"
	"github.com/jinford/chat-rag/internal/infra/sqlite"
	"github.com/jinford/chat-rag/internal/platform/config"
	"github.com/jinford/chat-rag/internal/platform/database"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Config         *config.Config
	Registry       *llm.Registry
	SessionService *session.SessionService
	IndexService   *vectorindex.IndexService
	IngestService  *ingestion.IngestService
	ChatService    *chat.ChatService

	logger   *slog.Logger
	database *database.DB
	closers  []func() error
}

type containerOptions struct {
	logger      *slog.Logger
	registry    *llm.Registry
	sessionRepo session.Repository
	vectorStore vectorindex.Store
	tokenizer   ingestion.Tokenizer
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerRegistry はプロバイダのレジストリを差し替える
func WithContainerRegistry(reg *llm.Registry) ContainerOption {
	return func(opts *containerOptions) {
		opts.registry = reg
	}
}

// WithContainerSessionRepository はセッション履歴ストアを差し替える
func WithContainerSessionRepository(repo session.Repository) ContainerOption {
	return func(opts *containerOptions) {
		opts.sessionRepo = repo
	}
}

// WithContainerVectorStore はベクトルストアを差し替える
func WithContainerVectorStore(store vectorindex.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.vectorStore = store
	}
}

// WithContainerTokenizer は分割に使うトークナイザを差し替える
func WithContainerTokenizer(tokenizer ingestion.Tokenizer) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenizer = tokenizer
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &ServiceContainer{Config: cfg, logger: options.logger}

	registry := options.registry
	if registry == nil {
		registry = NewRegistry(cfg, options.logger)
	}
	c.Registry = registry

	needsPostgres := (options.sessionRepo == nil && cfg.Session.Store == config.StorePostgres) ||
		(options.vectorStore == nil && cfg.Vector.Store == config.VectorPgvector)
	if needsPostgres {
		if err := c.openDatabase(ctx, cfg); err != nil {
			return nil, err
		}
	}

	sessionRepo := options.sessionRepo
	if sessionRepo == nil {
		repo, err := c.newSessionRepository(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		sessionRepo = repo
	}

	vectorStore := options.vectorStore
	if vectorStore == nil {
		store, err := c.newVectorStore(cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		vectorStore = store
	}

	pricing, err := llm.LoadPricing(cfg.OpenAI.PricingFile)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load pricing: %w", err)
	}

	tokenizer := options.tokenizer
	if tokenizer == nil {
		tokenizer = ingestion.NewTiktokenTokenizer(ingestion.DefaultEncoding)
	}
	splitter, err := ingestion.NewSplitter(tokenizer, cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	// SessionService
	c.SessionService = session.NewSessionService(sessionRepo, session.WithSessionLogger(options.logger))

	// IndexService
	c.IndexService = vectorindex.NewIndexService(vectorStore, registry,
		vectorindex.WithIndexLogger(options.logger),
		vectorindex.WithDefaultTopK(cfg.Vector.TopK),
		vectorindex.WithEmbedConcurrency(cfg.Vector.EmbedConcurrency),
	)

	// IngestService（Git URL はクローンしてから取り込む）
	gitClient := git.NewClient(git.WithSSHKey(cfg.Git.SSHKeyPath, cfg.Git.SSHPassword))
	c.IngestService = ingestion.NewIngestService(
		ingestion.NewLoader(
			ingestion.WithExtensions(cfg.Chunking.Extensions...),
			ingestion.WithLoaderLogger(options.logger),
		),
		splitter,
		c.IndexService,
		ingestion.WithIngestLogger(options.logger),
		ingestion.WithSourceResolvers(git.NewResolver(gitClient, cfg.Git.CloneDir, options.logger)),
	)

	// ChatService
	c.ChatService = chat.NewChatService(c.SessionService, c.IndexService, registry,
		chat.WithChatLogger(options.logger),
		chat.WithPricing(pricing),
	)

	return c, nil
}

func (c *ServiceContainer) openDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.database = db

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db.Pool, migrations.FS)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		if applied > 0 {
			// 作成した vector 型を新しい接続で登録させる
			db.Reset()
			c.logger.Info("database migrated", "applied", applied)
		}
	}
	return nil
}

func (c *ServiceContainer) newSessionRepository(ctx context.Context, cfg *config.Config) (session.Repository, error) {
	switch cfg.Session.Store {
	case config.StorePostgres:
		return postgres.NewSessionRepository(sqlc.New(c.database.Pool)), nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.Session.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite session store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store.SessionRepository(), nil
	case config.StoreMemory:
		return memory.NewSessionRepository(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

func (c *ServiceContainer) newVectorStore(cfg *config.Config) (vectorindex.Store, error) {
	switch cfg.Vector.Store {
	case config.VectorPgvector:
		return postgres.NewVectorStore(sqlc.New(c.database.Pool), database.NewTransactionProvider(c.database.Pool)), nil
	case config.VectorQdrant:
		store, err := qdrant.Dial(cfg.Vector.QdrantHost, cfg.Vector.QdrantPort, qdrant.WithLogger(c.logger))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	case config.VectorMemory:
		return memory.NewVectorStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.Vector.Store)
	}
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.database != nil {
		c.database.Close()
		c.database = nil
	}
	return errors.Join(errs...)
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
