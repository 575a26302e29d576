package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/samber/mo"
)

type memCollection struct {
	meta    vectorindex.Collection
	chunks  []vectorindex.Chunk
	vectors [][]float32
}

// VectorStore は総当たりのコサイン類似度で検索するインメモリのベクトルストア
type VectorStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewVectorStore は空の VectorStore を作成する
func NewVectorStore() *VectorStore {
	return &VectorStore{collections: make(map[string]*memCollection)}
}

func (s *VectorStore) GetCollection(_ context.Context, name string) (mo.Option[*vectorindex.Collection], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return mo.None[*vectorindex.Collection](), nil
	}
	meta := c.meta
	return mo.Some(&meta), nil
}

func (s *VectorStore) CreateCollection(_ context.Context, params vectorindex.CreateParams) (*vectorindex.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[params.Name]; ok {
		meta := c.meta
		return &meta, nil
	}
	return s.create(params), nil
}

// RecreateCollection は削除と作成をロックを保持したまま行う
func (s *VectorStore) RecreateCollection(_ context.Context, params vectorindex.CreateParams) (*vectorindex.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, params.Name)
	return s.create(params), nil
}

func (s *VectorStore) create(params vectorindex.CreateParams) *vectorindex.Collection {
	c := &memCollection{meta: vectorindex.Collection{
		ID:                uuid.New(),
		Name:              params.Name,
		EmbeddingProvider: params.EmbeddingProvider,
		Dimension:         params.Dimension,
		CreatedAt:         time.Now().UTC(),
	}}
	s.collections[params.Name] = c

	meta := c.meta
	return &meta
}

func (s *VectorStore) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *VectorStore) InsertChunks(_ context.Context, col *vectorindex.Collection, chunks []vectorindex.EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[col.Name]
	if !ok {
		return fmt.Errorf("%w %q", apperr.ErrCollectionNotFound, col.Name)
	}
	if c.meta.ID != col.ID {
		return fmt.Errorf("%w: %q", apperr.ErrCollectionRecreated, col.Name)
	}
	for _, ch := range chunks {
		if c.meta.Dimension > 0 && len(ch.Embedding) != c.meta.Dimension {
			return fmt.Errorf("%w: got %d, collection %q has %d", apperr.ErrDimensionMismatch, len(ch.Embedding), col.Name, c.meta.Dimension)
		}
	}
	for _, ch := range chunks {
		c.chunks = append(c.chunks, ch.Chunk)
		c.vectors = append(c.vectors, ch.Embedding)
	}
	return nil
}

func (s *VectorStore) Search(_ context.Context, col *vectorindex.Collection, query []float32, k int) ([]*vectorindex.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[col.Name]
	if !ok {
		return nil, fmt.Errorf("%w %q", apperr.ErrCollectionNotFound, col.Name)
	}

	results := make([]*vectorindex.ScoredChunk, len(c.vectors))
	for i, v := range c.vectors {
		results[i] = &vectorindex.ScoredChunk{Chunk: c.chunks[i], Score: cosine(v, query)}
	}
	// 同点は挿入順を保つ
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ vectorindex.Store     = (*VectorStore)(nil)
	_ vectorindex.Recreator = (*VectorStore)(nil)
)
