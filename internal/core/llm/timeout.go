package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinford/chat-rag/internal/core/apperr"
)

// WithTimeout は Generator の各呼び出しに期限を設定する。
// 期限切れは ErrProviderTimeout として返す
func WithTimeout(gen Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return gen
	}
	return &timeoutGenerator{next: gen, timeout: timeout}
}

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

func (g *timeoutGenerator) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.next.Generate(ctx, req)
	if err != nil {
		return Generation{}, mapDeadline(ctx, err, g.timeout)
	}
	return out, nil
}

// EmbedderWithTimeout は Embedder の各呼び出しに期限を設定する
func EmbedderWithTimeout(embedder Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return embedder
	}
	return &timeoutEmbedder{Embedder: embedder, timeout: timeout}
}

type timeoutEmbedder struct {
	Embedder
	timeout time.Duration
}

func (e *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, mapDeadline(ctx, err, e.timeout)
	}
	return vec, nil
}

func (e *timeoutEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vecs, err := e.Embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, mapDeadline(ctx, err, e.timeout)
	}
	return vecs, nil
}

func mapDeadline(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", apperr.ErrProviderTimeout, timeout, err)
	}
	return err
}
