package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/openai/openai-go/v3"
)

const (
	// DefaultEmbeddingModel はモデル未指定時の埋め込みモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension は DefaultEmbeddingModel の次元
	DefaultEmbeddingDimension = 1536

	// 1リクエストで送る入力の上限
	maxEmbeddingInputs = 100
)

var errNoInput = errors.New("no texts provided")

// Embedder は Embeddings API でテキストをベクトル化する llm.Embedder 実装
type Embedder struct {
	api       openai.Client
	baseURL   string
	model     string
	dimension int
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*Embedder)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithEmbeddingDimension は要求するベクトル次元を上書きする。0 はモデルの既定次元
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(e *Embedder) {
		e.dimension = dimension
	}
}

// WithEmbeddingBaseURL はAPIのベースURLを上書きする
func WithEmbeddingBaseURL(baseURL string) EmbedderOption {
	return func(e *Embedder) {
		e.baseURL = baseURL
	}
}

// NewEmbedder は Embedder を作成する。キーの形式は検証しない
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.api = newAPI(apiKey, e.baseURL)
	return e
}

// Embed は1件分のベクトルを返す
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// BatchEmbed は texts のベクトルを入力順に返す
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	switch {
	case len(texts) == 0:
		return nil, errNoInput
	case len(texts) > maxEmbeddingInputs:
		return nil, fmt.Errorf("batch of %d texts exceeds the limit of %d", len(texts), maxEmbeddingInputs)
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.api.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		i := int(item.Index)
		if i < 0 || i >= len(out) || out[i] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", item.Index)
		}
		out[i] = toFloat32(item.Embedding)
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string { return e.model }

// Dimension は要求するベクトル次元を返す
func (e *Embedder) Dimension() int { return e.dimension }

// MaxBatchSize は1回の BatchEmbed で渡せる件数
func (e *Embedder) MaxBatchSize() int { return maxEmbeddingInputs }

var _ llm.Embedder = (*Embedder)(nil)
