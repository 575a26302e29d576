package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/llm"
	"golang.org/x/sync/errgroup"
)

// EmbedderSource は埋め込みプロバイダを解決する（通常は llm.Registry）
type EmbedderSource interface {
	Embedder(provider llm.EmbeddingProvider) (llm.Embedder, error)
}

// IndexService はコレクションの作成・追加・類似検索を提供する
type IndexService struct {
	store       Store
	embedders   EmbedderSource
	logger      *slog.Logger
	topK        int
	concurrency int
}

// IndexServiceOption は IndexService のオプション設定
type IndexServiceOption func(*IndexService)

// WithIndexLogger はロガーを設定する
func WithIndexLogger(logger *slog.Logger) IndexServiceOption {
	return func(s *IndexService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultTopK は k 未指定時の検索件数を設定する
func WithDefaultTopK(k int) IndexServiceOption {
	return func(s *IndexService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithEmbedConcurrency はバッチ埋め込みの並列数を設定する
func WithEmbedConcurrency(n int) IndexServiceOption {
	return func(s *IndexService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewIndexService は新しい IndexService を作成する
func NewIndexService(store Store, embedders EmbedderSource, opts ...IndexServiceOption) *IndexService {
	s := &IndexService{
		store:       store,
		embedders:   embedders,
		logger:      slog.Default(),
		topK:        DefaultTopK,
		concurrency: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenParams はコレクションを開く際のパラメータ
type OpenParams struct {
	Name              string
	EmbeddingProvider llm.EmbeddingProvider
	DropExisting      bool
}

// Open は名前付きコレクションを開く。存在しない場合は作成する。
// 既存コレクションのプロバイダと異なるプロバイダで開く場合は DropExisting が必要
func (s *IndexService) Open(ctx context.Context, params OpenParams) (*Collection, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = DefaultCollectionName
	}

	embedder, err := s.embedders.Embedder(params.EmbeddingProvider)
	if err != nil {
		return nil, err
	}

	if !params.DropExisting {
		existing, err := s.store.GetCollection(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get collection: %w", err)
		}
		if found, ok := existing.Get(); ok {
			return checkBinding(found, params.EmbeddingProvider)
		}
	}

	dimension, err := s.probeDimension(ctx, embedder)
	if err != nil {
		return nil, err
	}
	create := CreateParams{
		Name:              name,
		EmbeddingProvider: params.EmbeddingProvider,
		Dimension:         dimension,
	}

	var col *Collection
	if params.DropExisting {
		col, err = s.recreate(ctx, create)
		if err != nil {
			return nil, err
		}
		s.logger.Info("collection dropped", "collection", name)
	} else {
		// 同時に作成された場合は既存のコレクションが返るため、束縛を改めて確認する
		col, err = s.store.CreateCollection(ctx, create)
		if err != nil {
			return nil, fmt.Errorf("failed to create collection: %w", err)
		}
		if col, err = checkBinding(col, params.EmbeddingProvider); err != nil {
			return nil, err
		}
	}

	s.logger.Info("collection opened",
		"collection", col.Name,
		"embeddingProvider", col.EmbeddingProvider,
		"dimension", col.Dimension,
	)
	return col, nil
}

func checkBinding(col *Collection, provider llm.EmbeddingProvider) (*Collection, error) {
	if col.EmbeddingProvider != provider {
		return nil, fmt.Errorf("%w: collection %q is bound to %q, requested %q",
			apperr.ErrEmbeddingProviderMismatch, col.Name, col.EmbeddingProvider, provider)
	}
	return col, nil
}

// probeDimension は次元数を宣言しない埋め込みを一度だけ呼び出して次元数を求める
func (s *IndexService) probeDimension(ctx context.Context, embedder llm.Embedder) (int, error) {
	if dim := embedder.Dimension(); dim > 0 {
		return dim, nil
	}
	vec, err := embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, apperr.Provider("probe embedding dimension", err)
	}
	return len(vec), nil
}

func (s *IndexService) recreate(ctx context.Context, params CreateParams) (*Collection, error) {
	if r, ok := s.store.(Recreator); ok {
		col, err := r.RecreateCollection(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to recreate collection: %w", err)
		}
		return col, nil
	}

	if err := s.store.DropCollection(ctx, params.Name); err != nil {
		return nil, fmt.Errorf("failed to drop collection: %w", err)
	}
	col, err := s.store.CreateCollection(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return col, nil
}

// Upsert はチャンクを埋め込みしてコレクションに追加し、追加件数を返す
func (s *IndexService) Upsert(ctx context.Context, col *Collection, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	embedder, err := s.embedders.Embedder(col.EmbeddingProvider)
	if err != nil {
		return 0, err
	}

	batchSize := embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	embedded := make([]EmbeddedChunk, len(chunks))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		eg.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}

			vectors, err := embedder.BatchEmbed(egctx, texts)
			if err != nil {
				return apperr.Provider("embed chunks", err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
			}

			for i, vec := range vectors {
				if col.Dimension > 0 && len(vec) != col.Dimension {
					return fmt.Errorf("%w: got %d, want %d", apperr.ErrDimensionMismatch, len(vec), col.Dimension)
				}
				embedded[start+i] = EmbeddedChunk{Chunk: chunks[start+i], Embedding: vec}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return 0, err
	}

	if err := s.store.InsertChunks(ctx, col, embedded); err != nil {
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}

	s.logger.Debug("chunks upserted", "collection", col.Name, "count", len(embedded))
	return len(embedded), nil
}

// SearchParams は類似検索パラメータ
type SearchParams struct {
	CollectionName string
	Query          string
	K              int
}

// Resolve は検索対象のコレクションを取得し、束縛された埋め込みが利用できることを確認する
func (s *IndexService) Resolve(ctx context.Context, collectionName string) (*Collection, error) {
	col, _, err := s.resolve(ctx, collectionName)
	return col, err
}

func (s *IndexService) resolve(ctx context.Context, collectionName string) (*Collection, llm.Embedder, error) {
	name := strings.TrimSpace(collectionName)
	if name == "" {
		name = DefaultCollectionName
	}

	found, err := s.store.GetCollection(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get collection: %w", err)
	}
	col, ok := found.Get()
	if !ok {
		return nil, nil, fmt.Errorf("%w %q", apperr.ErrCollectionNotFound, name)
	}

	embedder, err := s.embedders.Embedder(col.EmbeddingProvider)
	if err != nil {
		return nil, nil, err
	}
	return col, embedder, nil
}

// SimilaritySearch はコレクションに束縛された埋め込みでクエリをベクトル化し、近い順に返す
func (s *IndexService) SimilaritySearch(ctx context.Context, params SearchParams) ([]*ScoredChunk, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, apperr.ErrEmptyQuery
	}

	col, embedder, err := s.resolve(ctx, params.CollectionName)
	if err != nil {
		return nil, err
	}

	queryVector, err := embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, apperr.Provider("embed query", err)
	}
	if col.Dimension > 0 && len(queryVector) != col.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", apperr.ErrDimensionMismatch, len(queryVector), col.Dimension)
	}

	k := params.K
	if k <= 0 {
		k = s.topK
	}

	results, err := s.store.Search(ctx, col, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}
