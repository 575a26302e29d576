package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinford/chat-rag/internal/core/apperr"
)

// EmbeddingProvider は埋め込みバックエンドの種別
type EmbeddingProvider string

const (
	// EmbeddingHosted はホスト型API（OpenAI）の埋め込み
	EmbeddingHosted EmbeddingProvider = "hosted"
	// EmbeddingLocal はローカルの文埋め込みモデル
	EmbeddingLocal EmbeddingProvider = "local"
)

// ParseEmbeddingProvider は文字列から EmbeddingProvider を解決する。
// 空文字列はデフォルトの hosted として扱う
func ParseEmbeddingProvider(s string) (EmbeddingProvider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hosted", "openai":
		return EmbeddingHosted, nil
	case "local", "sentence":
		return EmbeddingLocal, nil
	default:
		return "", fmt.Errorf("%w: unknown embedding provider %q", apperr.ErrInvalidConfiguration, s)
	}
}

// ModelName は言語モデルバックエンドの種別
type ModelName string

const (
	// ModelHosted はホスト型APIのチャットモデル
	ModelHosted ModelName = "hosted"
	// ModelLocalA は gpt4all 形式のローカル重み
	ModelLocalA ModelName = "local-variant-a"
	// ModelLocalB は llama.cpp 形式のローカル重み
	ModelLocalB ModelName = "local-variant-b"
)

// ParseModelName は文字列から ModelName を解決する。
// 空文字列はデフォルトの hosted として扱う
func ParseModelName(s string) (ModelName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hosted", "openai":
		return ModelHosted, nil
	case "local-variant-a", "gpt4all":
		return ModelLocalA, nil
	case "local-variant-b", "llamacpp":
		return ModelLocalB, nil
	default:
		return "", fmt.Errorf("%w: unknown model name %q", apperr.ErrInvalidConfiguration, s)
	}
}

// Embedder はテキストをベクトルに変換する
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストのEmbeddingを入力順に生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension はベクトル次元数を返す（不明な場合は0）
	Dimension() int

	// MaxBatchSize は1回のBatchEmbedで渡せる最大件数
	MaxBatchSize() int

	// ModelName はモデル名を返す
	ModelName() string
}

// GenerateRequest は生成リクエスト
type GenerateRequest struct {
	Prompt string
	Stop   []string
}

// Usage はトークン使用量
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens は合計トークン数を返す
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Generation は生成結果
type Generation struct {
	Text  string
	Model string // 実際に応答したモデル名
	Usage Usage
}

// Generator はプロンプトからテキストを生成する
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// Model はレジストリに登録された言語モデル
type Model struct {
	Name      ModelName
	Generator Generator
	// Metered が true の場合はトークン数とコストを計上する（ホスト型APIのみ）
	Metered bool
}
