package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/jinford/chat-rag/internal/infra/postgres/sqlc"
	"github.com/jinford/chat-rag/internal/platform/database"
)

const collectionLockNamespace = "vector_collection"

// VectorStore は pgvector を使う vectorindex.Store 実装。
// 書き込みはコレクション名をキーにしたアドバイザリロックの下で1トランザクションとして実行する
type VectorStore struct {
	q  sqlc.Querier
	tx *database.TransactionProvider
}

// NewVectorStore は新しい VectorStore を返す。
func NewVectorStore(q sqlc.Querier, tx *database.TransactionProvider) *VectorStore {
	return &VectorStore{q: q, tx: tx}
}

var (
	_ vectorindex.Store     = (*VectorStore)(nil)
	_ vectorindex.Recreator = (*VectorStore)(nil)
)

func (s *VectorStore) GetCollection(ctx context.Context, name string) (mo.Option[*vectorindex.Collection], error) {
	row, err := s.q.GetCollectionByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*vectorindex.Collection](), nil
		}
		return mo.None[*vectorindex.Collection](), fmt.Errorf("failed to get collection: %w", err)
	}
	return mo.Some(toCollection(row)), nil
}

func (s *VectorStore) CreateCollection(ctx context.Context, params vectorindex.CreateParams) (*vectorindex.Collection, error) {
	return database.Transact(ctx, s.tx, func(a *database.Adapter) (*vectorindex.Collection, error) {
		if err := a.Locks.AcquireFor(ctx, collectionLockNamespace, params.Name); err != nil {
			return nil, err
		}
		col, err := createCollection(ctx, a.Queries, params)
		if !errors.Is(err, pgx.ErrNoRows) {
			return col, err
		}
		// 同名が既にあるので既存を返す
		existing, err := a.Queries.GetCollectionByName(ctx, params.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get collection: %w", err)
		}
		return toCollection(existing), nil
	})
}

// RecreateCollection は既存コレクションの削除と空のコレクションの作成を1トランザクションで行う
func (s *VectorStore) RecreateCollection(ctx context.Context, params vectorindex.CreateParams) (*vectorindex.Collection, error) {
	return database.Transact(ctx, s.tx, func(a *database.Adapter) (*vectorindex.Collection, error) {
		if err := a.Locks.AcquireFor(ctx, collectionLockNamespace, params.Name); err != nil {
			return nil, err
		}
		if _, err := a.Queries.DeleteCollectionByName(ctx, params.Name); err != nil {
			return nil, fmt.Errorf("failed to delete collection: %w", err)
		}
		return createCollection(ctx, a.Queries, params)
	})
}

func (s *VectorStore) DropCollection(ctx context.Context, name string) error {
	_, err := database.Transact(ctx, s.tx, func(a *database.Adapter) (int64, error) {
		if err := a.Locks.AcquireFor(ctx, collectionLockNamespace, name); err != nil {
			return 0, err
		}
		n, err := a.Queries.DeleteCollectionByName(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("failed to delete collection: %w", err)
		}
		return n, nil
	})
	return err
}

func (s *VectorStore) InsertChunks(ctx context.Context, col *vectorindex.Collection, chunks []vectorindex.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	_, err := database.Transact(ctx, s.tx, func(a *database.Adapter) (int, error) {
		if err := a.Locks.AcquireFor(ctx, collectionLockNamespace, col.Name); err != nil {
			return 0, err
		}

		// 開いた後やロック待ちの間に作り直されていないことを確認する
		current, err := a.Queries.GetCollectionByName(ctx, col.Name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, fmt.Errorf("%w %q", apperr.ErrCollectionNotFound, col.Name)
			}
			return 0, fmt.Errorf("failed to get collection: %w", err)
		}
		if fromPgUUID(current.ID) != col.ID {
			return 0, fmt.Errorf("%w: %q", apperr.ErrCollectionRecreated, col.Name)
		}
		collectionID := current.ID

		for _, ch := range chunks {
			if current.Dimension > 0 && len(ch.Embedding) != int(current.Dimension) {
				return 0, fmt.Errorf("%w: got %d, collection %q has %d",
					apperr.ErrDimensionMismatch, len(ch.Embedding), col.Name, current.Dimension)
			}
			if err := a.Queries.InsertChunk(ctx, sqlc.InsertChunkParams{
				CollectionID: collectionID,
				Content:      ch.Text,
				Source:       ch.Source,
				Embedding:    pgvector.NewVector(ch.Embedding),
			}); err != nil {
				return 0, fmt.Errorf("failed to insert chunk: %w", err)
			}
		}
		return len(chunks), nil
	})
	return err
}

func (s *VectorStore) Search(ctx context.Context, col *vectorindex.Collection, query []float32, k int) ([]*vectorindex.ScoredChunk, error) {
	rows, err := s.q.SearchChunks(ctx, sqlc.SearchChunksParams{
		QueryVector:  pgvector.NewVector(query),
		CollectionID: pgUUID(col.ID),
		RowLimit:     int32(k),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]*vectorindex.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		results = append(results, &vectorindex.ScoredChunk{
			Chunk: vectorindex.Chunk{Text: row.Content, Source: row.Source},
			Score: row.Score,
		})
	}
	return results, nil
}

// Count はコレクションのチャンク数を返す
func (s *VectorStore) Count(ctx context.Context, col *vectorindex.Collection) (int64, error) {
	n, err := s.q.CountChunks(ctx, pgUUID(col.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func createCollection(ctx context.Context, q *sqlc.Queries, params vectorindex.CreateParams) (*vectorindex.Collection, error) {
	row, err := q.CreateCollection(ctx, sqlc.CreateCollectionParams{
		Name:              params.Name,
		EmbeddingProvider: string(params.EmbeddingProvider),
		Dimension:         int32(params.Dimension),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return toCollection(row), nil
}

func toCollection(row sqlc.VectorCollection) *vectorindex.Collection {
	return &vectorindex.Collection{
		ID:                fromPgUUID(row.ID),
		Name:              row.Name,
		EmbeddingProvider: llm.EmbeddingProvider(row.EmbeddingProvider),
		Dimension:         int(row.Dimension),
		CreatedAt:         fromPgTime(row.CreatedAt),
	}
}
