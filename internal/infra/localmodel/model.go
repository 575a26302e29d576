package localmodel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/infra/openai"
)

const (
	// DefaultWeightsDir は重みファイルの既定ディレクトリ
	DefaultWeightsDir = "llms"
	// DefaultBaseURL はローカル推論サーバーの既定URL
	DefaultBaseURL = "http://localhost:8081/v1"
)

// Variant はローカル重みモデルの種類
type Variant struct {
	Name        llm.ModelName
	WeightsFile string
	Backend     string
}

// Variants は利用可能なローカルモデル
var Variants = []Variant{
	{Name: llm.ModelLocalA, WeightsFile: "ggml-gpt4all-j.bin", Backend: "gpt4all"},
	{Name: llm.ModelLocalB, WeightsFile: "ggml-gpt4all-l13b-snoozy.bin", Backend: "llamacpp"},
}

// LookupVariant は名前に対応する Variant を返す
func LookupVariant(name llm.ModelName) (Variant, bool) {
	for _, v := range Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Config はローカルモデルの設定
type Config struct {
	WeightsDir string
	BaseURL    string
}

// Generator はローカル推論サーバーで重みファイルを使って生成する llm.Generator 実装
type Generator struct {
	variant Variant
	client  *openai.Client
}

// New は重みファイルの存在を確認して Generator を作成する。
// 重みファイルがない場合は ErrModelWeightsNotFound を返す
func New(variant Variant, cfg Config) (*Generator, error) {
	dir := cfg.WeightsDir
	if dir == "" {
		dir = DefaultWeightsDir
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	path := filepath.Join(dir, variant.WeightsFile)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrModelWeightsNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat weights file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", apperr.ErrModelWeightsNotFound, path)
	}

	return &Generator{
		variant: variant,
		// ローカルサーバーは認証しないのでキーはダミー
		client: openai.NewClient("local",
			openai.WithBaseURL(baseURL),
			openai.WithModel(variant.WeightsFile),
		),
	}, nil
}

// Variant はこの Generator のモデル種別を返す
func (g *Generator) Variant() Variant {
	return g.variant
}

// Generate はプロンプトからテキストを生成する
func (g *Generator) Generate(ctx context.Context, req llm.GenerateRequest) (llm.Generation, error) {
	out, err := g.client.Generate(ctx, req)
	if err != nil {
		return llm.Generation{}, fmt.Errorf("local model %s: %w", g.variant.Backend, err)
	}
	// ローカルモデルはトークン数を計上しない
	out.Usage = llm.Usage{}
	out.Model = string(g.variant.Name)
	return out, nil
}

var _ llm.Generator = (*Generator)(nil)
