package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
)

// Indexer はチャンクを格納するベクトルインデックス
type Indexer interface {
	Open(ctx context.Context, params vectorindex.OpenParams) (*vectorindex.Collection, error)
	Upsert(ctx context.Context, col *vectorindex.Collection, chunks []vectorindex.Chunk) (int, error)
}

// IngestService は文書の読み込み・分割・ベクトル化・格納を行う
type IngestService struct {
	loader    *Loader
	splitter  *Splitter
	indexer   Indexer
	resolvers []SourceResolver
	logger    *slog.Logger
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*IngestService)

// WithIngestLogger はロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSourceResolvers はローカルパス以外のソース解決手段を追加する
func WithSourceResolvers(resolvers ...SourceResolver) IngestServiceOption {
	return func(s *IngestService) {
		s.resolvers = append(s.resolvers, resolvers...)
	}
}

// NewIngestService は新しい IngestService を作成する
func NewIngestService(loader *Loader, splitter *Splitter, indexer Indexer, opts ...IngestServiceOption) *IngestService {
	s := &IngestService{
		loader:   loader,
		splitter: splitter,
		indexer:  indexer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest はソース配下の文書をコレクションに取り込む。
// 同じ文書を再度取り込むとチャンクは重複して追加される
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	location := strings.TrimSpace(params.SourcePath)
	if location == "" {
		return nil, fmt.Errorf("%w: path must be provided", apperr.ErrSourcePathNotFound)
	}

	started := time.Now()

	root, cleanup, err := s.resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	loaded, err := s.loader.Load(ctx, root)
	if err != nil {
		return nil, err
	}
	if root != location {
		// 一時ディレクトリは取り込み後に消えるため、出典は元の場所を基準にする
		rebaseSources(loaded.Documents, root, location)
	}

	var chunks []vectorindex.Chunk
	for _, doc := range loaded.Documents {
		docChunks, err := s.splitter.Split(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.Source, err)
		}
		chunks = append(chunks, docChunks...)
	}

	col, err := s.indexer.Open(ctx, vectorindex.OpenParams{
		Name:              params.CollectionName,
		EmbeddingProvider: params.EmbeddingProvider,
		DropExisting:      params.DropExisting,
	})
	if err != nil {
		return nil, err
	}

	inserted, err := s.indexer.Upsert(ctx, col, chunks)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		CollectionName:    col.Name,
		EmbeddingProvider: col.EmbeddingProvider,
		Documents:         len(loaded.Documents),
		Chunks:            inserted,
		SkippedFiles:      loaded.Skipped,
	}

	s.logger.Info("ingestion completed",
		"source", location,
		"collection", result.CollectionName,
		"embeddingProvider", result.EmbeddingProvider,
		"documents", result.Documents,
		"chunks", result.Chunks,
		"skipped", result.SkippedFiles,
		"elapsed", time.Since(started),
	)
	return result, nil
}

func (s *IngestService) resolve(ctx context.Context, location string) (string, func(), error) {
	for _, r := range s.resolvers {
		if !r.CanResolve(location) {
			continue
		}
		path, cleanup, err := r.Resolve(ctx, location)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %w", apperr.ErrSourcePathNotFound, location, err)
		}
		if cleanup == nil {
			cleanup = func() {}
		}
		return path, cleanup, nil
	}
	return location, func() {}, nil
}

func rebaseSources(docs []*Document, root, location string) {
	base := strings.TrimSuffix(location, "/")
	for _, doc := range docs {
		rel, err := filepath.Rel(root, doc.Source)
		if err != nil || rel == "." {
			doc.Source = base
			continue
		}
		doc.Source = base + "/" + filepath.ToSlash(rel)
	}
}
