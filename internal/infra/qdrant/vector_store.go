package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/samber/mo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
)

const (
	payloadContent = "content"
	payloadSource  = "source"
)

// collectionNamespace はコレクション名から決定的なIDを作るための名前空間
var collectionNamespace = uuid.MustParse("6f1d8a52-3c0b-4b8e-9a51-2d7c4f0e9b13")

// VectorStore は Qdrant の gRPC API を使う vectorindex.Store 実装。
// コレクションごとに埋め込みプロバイダ名の名前付きベクトルを1つ持ち、束縛をスキーマから復元する
type VectorStore struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	logger      *slog.Logger
}

// Option は VectorStore のオプション設定
type Option func(*VectorStore)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Dial は host:port の Qdrant に接続する VectorStore を作成する
func Dial(host string, port int, opts ...Option) (*VectorStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s := NewVectorStore(conn, opts...)
	s.conn = conn
	return s, nil
}

// NewVectorStore は既存の接続から VectorStore を作成する
func NewVectorStore(conn grpc.ClientConnInterface, opts ...Option) *VectorStore {
	s := &VectorStore{
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close は Dial で作成した接続を閉じる
func (s *VectorStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

var _ vectorindex.Store = (*VectorStore)(nil)

func (s *VectorStore) GetCollection(ctx context.Context, name string) (mo.Option[*vectorindex.Collection], error) {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return mo.None[*vectorindex.Collection](), fmt.Errorf("qdrant collection exists: %w", err)
	}
	if !exists.GetResult().GetExists() {
		return mo.None[*vectorindex.Collection](), nil
	}

	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		return mo.None[*vectorindex.Collection](), fmt.Errorf("qdrant get collection: %w", err)
	}

	provider, params, err := binding(info.GetResult().GetConfig().GetParams().GetVectorsConfig())
	if err != nil {
		return mo.None[*vectorindex.Collection](), fmt.Errorf("collection %q: %w", name, err)
	}
	return mo.Some(newCollection(name, provider, int(params.GetSize()))), nil
}

func (s *VectorStore) CreateCollection(ctx context.Context, params vectorindex.CreateParams) (*vectorindex.Collection, error) {
	if params.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant collection %q requires a vector dimension", params.Name)
	}

	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: params.Name,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_ParamsMap{
			ParamsMap: &pb.VectorParamsMap{Map: map[string]*pb.VectorParams{
				string(params.EmbeddingProvider): {
					Size:     uint64(params.Dimension),
					Distance: pb.Distance_Cosine,
				},
			}},
		}},
	})
	if err != nil {
		// 同時に作成された場合は既存のコレクションを返す
		existing, getErr := s.GetCollection(ctx, params.Name)
		if getErr == nil {
			if col, ok := existing.Get(); ok {
				return col, nil
			}
		}
		return nil, fmt.Errorf("qdrant create collection: %w", err)
	}

	s.logger.Debug("qdrant collection created", "collection", params.Name, "vector", params.EmbeddingProvider)
	return newCollection(params.Name, params.EmbeddingProvider, params.Dimension), nil
}

func (s *VectorStore) DropCollection(ctx context.Context, name string) error {
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	return nil
}

func (s *VectorStore) InsertChunks(ctx context.Context, col *vectorindex.Collection, chunks []vectorindex.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	current, err := s.GetCollection(ctx, col.Name)
	if err != nil {
		return err
	}
	found, ok := current.Get()
	if !ok {
		return fmt.Errorf("%w %q", apperr.ErrCollectionNotFound, col.Name)
	}
	// IDは名前から決まるため、束縛の変化で作り直しを検出する
	if found.EmbeddingProvider != col.EmbeddingProvider || found.Dimension != col.Dimension {
		return fmt.Errorf("%w: %q", apperr.ErrCollectionRecreated, col.Name)
	}

	vectorName := string(col.EmbeddingProvider)
	points := make([]*pb.PointStruct, len(chunks))
	for i, ch := range chunks {
		if col.Dimension > 0 && len(ch.Embedding) != col.Dimension {
			return fmt.Errorf("%w: got %d, collection %q has %d",
				apperr.ErrDimensionMismatch, len(ch.Embedding), col.Name, col.Dimension)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vectors{
				Vectors: &pb.NamedVectors{Vectors: map[string]*pb.Vector{
					vectorName: {Data: ch.Embedding},
				}},
			}},
			Payload: map[string]*pb.Value{
				payloadContent: {Kind: &pb.Value_StringValue{StringValue: ch.Text}},
				payloadSource:  {Kind: &pb.Value_StringValue{StringValue: ch.Source}},
			},
		}
	}

	wait := true
	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: col.Name,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (s *VectorStore) Search(ctx context.Context, col *vectorindex.Collection, query []float32, k int) ([]*vectorindex.ScoredChunk, error) {
	vectorName := string(col.EmbeddingProvider)
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: col.Name,
		Vector:         query,
		VectorName:     &vectorName,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]*vectorindex.ScoredChunk, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		payload := pt.GetPayload()
		results = append(results, &vectorindex.ScoredChunk{
			Chunk: vectorindex.Chunk{
				Text:   payload[payloadContent].GetStringValue(),
				Source: payload[payloadSource].GetStringValue(),
			},
			Score: float64(pt.GetScore()),
		})
	}
	return results, nil
}

// binding はコレクションの名前付きベクトルから埋め込みプロバイダとベクトル設定を取り出す
func binding(cfg *pb.VectorsConfig) (llm.EmbeddingProvider, *pb.VectorParams, error) {
	named := cfg.GetParamsMap().GetMap()
	if len(named) != 1 {
		return "", nil, fmt.Errorf("expected exactly one named vector, found %d", len(named))
	}
	for name, params := range named {
		provider, err := llm.ParseEmbeddingProvider(name)
		if err != nil {
			return "", nil, err
		}
		return provider, params, nil
	}
	return "", nil, nil
}

func newCollection(name string, provider llm.EmbeddingProvider, dimension int) *vectorindex.Collection {
	return &vectorindex.Collection{
		ID:                uuid.NewSHA1(collectionNamespace, []byte(name)),
		Name:              name,
		EmbeddingProvider: provider,
		Dimension:         dimension,
	}
}
