package vectorindex

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinford/chat-rag/internal/core/llm"
)

// DefaultCollectionName は既定のコレクション名
const DefaultCollectionName = "default"

// DefaultTopK は類似検索の既定件数
const DefaultTopK = 4

// Collection は名前付きのベクトルコレクション。
// 作成時の埋め込みプロバイダと次元数に束縛される
type Collection struct {
	ID                uuid.UUID             `json:"id"`
	Name              string                `json:"name"`
	EmbeddingProvider llm.EmbeddingProvider `json:"embedding_provider"`
	Dimension         int                   `json:"dimension"`
	CreatedAt         time.Time             `json:"created_at"`
}

// Chunk は取り込み単位のテキスト片
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// EmbeddedChunk はベクトル化済みのチャンク
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// ScoredChunk は検索結果のチャンク（Score は類似度、大きいほど近い）
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// CreateParams はコレクション作成パラメータ
type CreateParams struct {
	Name              string
	EmbeddingProvider llm.EmbeddingProvider
	Dimension         int
}
