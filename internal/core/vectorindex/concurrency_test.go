package vectorindex_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/jinford/chat-rag/internal/infra/localembed"
	"github.com/jinford/chat-rag/internal/infra/memory"
)

// gatedStore は parties 件の GetCollection が揃うまで全員を待たせ、
// 全員が「未作成」を観測してから作成に進むようにする
type gatedStore struct {
	vectorindex.Store
	arrived sync.WaitGroup
}

func newGatedStore(parties int) *gatedStore {
	s := &gatedStore{Store: memory.NewVectorStore()}
	s.arrived.Add(parties)
	return s
}

func (s *gatedStore) GetCollection(ctx context.Context, name string) (mo.Option[*vectorindex.Collection], error) {
	found, err := s.Store.GetCollection(ctx, name)
	s.arrived.Done()
	s.arrived.Wait()
	return found, err
}

func bothProvidersRegistry() *llm.Registry {
	reg := llm.NewRegistry()
	reg.RegisterEmbedder(llm.EmbeddingLocal, localembed.NewEmbedder(localembed.WithDimension(16)))
	reg.RegisterEmbedder(llm.EmbeddingHosted, localembed.NewEmbedder(localembed.WithDimension(32)))
	return reg
}

func TestIndexService_UpsertWithHandleFromBeforeRecreateIsRejected(t *testing.T) {
	ctx := context.Background()
	svc := vectorindex.NewIndexService(memory.NewVectorStore(), bothProvidersRegistry())

	stale, err := svc.Open(ctx, vectorindex.OpenParams{Name: "docs", EmbeddingProvider: llm.EmbeddingLocal})
	require.NoError(t, err)

	fresh, err := svc.Open(ctx, vectorindex.OpenParams{Name: "docs", EmbeddingProvider: llm.EmbeddingHosted, DropExisting: true})
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)

	_, err = svc.Upsert(ctx, stale, []vectorindex.Chunk{{Text: "old text", Source: "old.txt"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCollectionRecreated)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	hits, err := svc.SimilaritySearch(ctx, vectorindex.SearchParams{CollectionName: "docs", Query: "old text", K: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexService_ConcurrentOpenOfNewCollection(t *testing.T) {
	const parties = 4
	ctx := context.Background()
	svc := vectorindex.NewIndexService(newGatedStore(parties), bothProvidersRegistry())

	cols := make([]*vectorindex.Collection, parties)
	errs := make([]error, parties)
	var wg sync.WaitGroup
	for i := range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cols[i], errs[i] = svc.Open(ctx, vectorindex.OpenParams{Name: "docs", EmbeddingProvider: llm.EmbeddingLocal})
		}()
	}
	wg.Wait()

	for i := range parties {
		require.NoError(t, errs[i])
		assert.Equal(t, cols[0].ID, cols[i].ID)
	}
}

func TestIndexService_ConcurrentOpenWithDifferentProviders(t *testing.T) {
	ctx := context.Background()
	svc := vectorindex.NewIndexService(newGatedStore(2), bothProvidersRegistry())

	providers := []llm.EmbeddingProvider{llm.EmbeddingLocal, llm.EmbeddingHosted}
	errs := make([]error, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Open(ctx, vectorindex.OpenParams{Name: "docs", EmbeddingProvider: p})
		}()
	}
	wg.Wait()

	var ok, mismatched int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, apperr.ErrEmbeddingProviderMismatch):
			mismatched++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, mismatched)
}

func TestIndexService_ConcurrentUpsertKeepsEveryChunk(t *testing.T) {
	const writers, perWriter = 8, 5
	ctx := context.Background()
	svc := vectorindex.NewIndexService(memory.NewVectorStore(), bothProvidersRegistry())

	col, err := svc.Open(ctx, vectorindex.OpenParams{Name: "docs", EmbeddingProvider: llm.EmbeddingLocal})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks := make([]vectorindex.Chunk, perWriter)
			for i := range chunks {
				chunks[i] = vectorindex.Chunk{Text: fmt.Sprintf("writer %d chunk %d", w, i), Source: fmt.Sprintf("w%d.txt", w)}
			}
			_, errs[w] = svc.Upsert(ctx, col, chunks)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	hits, err := svc.SimilaritySearch(ctx, vectorindex.SearchParams{CollectionName: "docs", Query: "writer chunk", K: writers * perWriter * 2})
	require.NoError(t, err)
	assert.Len(t, hits, writers*perWriter)
}
