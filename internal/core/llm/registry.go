package llm

import (
	"fmt"
	"sync"

	"github.com/jinford/chat-rag/internal/core/apperr"
)

type embedderEntry struct {
	embedder Embedder
	err      error
}

type modelEntry struct {
	model *Model
	err   error
}

// Registry は設定時に解決したプロバイダを保持する。
// 設定に失敗したプロバイダはエラーごと登録し、選択時にそのエラーを返す
type Registry struct {
	mu        sync.RWMutex
	embedders map[EmbeddingProvider]embedderEntry
	models    map[ModelName]modelEntry
}

// NewRegistry は空の Registry を作成する
func NewRegistry() *Registry {
	return &Registry{
		embedders: make(map[EmbeddingProvider]embedderEntry),
		models:    make(map[ModelName]modelEntry),
	}
}

// RegisterEmbedder は利用可能な Embedder を登録する
func (r *Registry) RegisterEmbedder(provider EmbeddingProvider, embedder Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[provider] = embedderEntry{embedder: embedder}
}

// DisableEmbedder は設定エラーにより利用できない Embedder を登録する
func (r *Registry) DisableEmbedder(provider EmbeddingProvider, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[provider] = embedderEntry{err: err}
}

// RegisterModel は利用可能なモデルを登録する
func (r *Registry) RegisterModel(model *Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[model.Name] = modelEntry{model: model}
}

// DisableModel は設定エラーにより利用できないモデルを登録する
func (r *Registry) DisableModel(name ModelName, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = modelEntry{err: err}
}

// Embedder は種別に対応する Embedder を返す
func (r *Registry) Embedder(provider EmbeddingProvider) (Embedder, error) {
	r.mu.RLock()
	entry, ok := r.embedders[provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured", apperr.ErrInvalidConfiguration, provider)
	}
	if entry.err != nil {
		return nil, fmt.Errorf("embedding provider %q: %w", provider, entry.err)
	}
	return entry.embedder, nil
}

// Model は名前に対応するモデルを返す
func (r *Registry) Model(name ModelName) (*Model, error) {
	r.mu.RLock()
	entry, ok := r.models[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q is not configured", apperr.ErrModelUnavailable, name)
	}
	if entry.err != nil {
		return nil, fmt.Errorf("model %q: %w", name, entry.err)
	}
	return entry.model, nil
}
