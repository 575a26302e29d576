package localembed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/jinford/chat-rag/internal/core/llm"
)

const (
	// DefaultDimension はローカル埋め込みのデフォルト次元
	DefaultDimension = 384
	// ModelName はローカル埋め込みのモデル名
	ModelName = "local-feature-hashing"
)

// Embedder はプロセス内で動作する特徴量ハッシュ埋め込み。
// 学習済みモデルは使わず、単語とバイグラムを符号付きハッシュで固定次元に射影してL2正規化する。
// 同じテキストには常に同じベクトルを返す
type Embedder struct {
	dimension int
}

// Option は Embedder のオプション設定
type Option func(*Embedder)

// WithDimension はベクトル次元を上書きする
func WithDimension(dimension int) Option {
	return func(e *Embedder) {
		if dimension > 0 {
			e.dimension = dimension
		}
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(opts ...Option) *Embedder {
	e := &Embedder{dimension: DefaultDimension}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vectorize(text), nil
}

// BatchEmbed は複数テキストの Embedding を入力順に生成する
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vectorize(t)
	}
	return out, nil
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize はバッチ処理の最大サイズを返す
func (e *Embedder) MaxBatchSize() int {
	return 256
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return ModelName
}

func (e *Embedder) vectorize(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := tokenize(text)

	for i, tok := range tokens {
		e.add(vec, tok, 1.0)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dimension))
	sign := float32(1)
	if (sum>>63)&1 == 1 {
		sign = -1
	}
	vec[idx] += sign * weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

var _ llm.Embedder = (*Embedder)(nil)
