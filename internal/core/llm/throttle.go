package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter はAPI呼び出しのレートと並列度を制限する
type RateLimiter struct {
	limiter   *rate.Limiter
	semaphore chan struct{}
	perMinute int
}

// NewRateLimiter は新しいRateLimiterを作成する。
// maxRequestsPerMinute が0以下の場合は nil を返す（制限なし）
func NewRateLimiter(maxRequestsPerMinute, maxConcurrent int) *RateLimiter {
	if maxRequestsPerMinute <= 0 {
		return nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = maxRequestsPerMinute
	}
	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxRequestsPerMinute)), maxRequestsPerMinute),
		semaphore: make(chan struct{}, maxConcurrent),
		perMinute: maxRequestsPerMinute,
	}
}

// Wait はレート制限に従って待機し、実行権限を取得する。
// 成功した場合は必ず Release を呼ぶこと
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case rl.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := rl.limiter.Wait(ctx); err != nil {
		<-rl.semaphore
		return err
	}
	return nil
}

// Release は実行権限を解放する
func (rl *RateLimiter) Release() {
	<-rl.semaphore
}

// Status は現在の状態を返す
func (rl *RateLimiter) Status() RateLimiterStatus {
	return RateLimiterStatus{
		MaxRequestsPerMinute: rl.perMinute,
		AvailableTokens:      int(rl.limiter.Tokens()),
		ActiveRequests:       len(rl.semaphore),
	}
}

// RateLimiterStatus はレート制限の状態
type RateLimiterStatus struct {
	MaxRequestsPerMinute int
	AvailableTokens      int
	ActiveRequests       int
}

func (s RateLimiterStatus) String() string {
	return fmt.Sprintf(
		"RateLimiter: max=%d/min, available=%d, active=%d",
		s.MaxRequestsPerMinute,
		s.AvailableTokens,
		s.ActiveRequests,
	)
}

// Throttle は Generator の呼び出しをレート制限付きにする。
// limiter が nil の場合は gen をそのまま返す
func Throttle(gen Generator, limiter *RateLimiter) Generator {
	if limiter == nil {
		return gen
	}
	return &throttledGenerator{next: gen, limiter: limiter}
}

type throttledGenerator struct {
	next    Generator
	limiter *RateLimiter
}

func (g *throttledGenerator) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Generation{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	defer g.limiter.Release()

	return g.next.Generate(ctx, req)
}

// ThrottleEmbedder は Embedder の呼び出しをレート制限付きにする
func ThrottleEmbedder(embedder Embedder, limiter *RateLimiter) Embedder {
	if limiter == nil {
		return embedder
	}
	return &throttledEmbedder{Embedder: embedder, limiter: limiter}
}

type throttledEmbedder struct {
	Embedder
	limiter *RateLimiter
}

func (e *throttledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	defer e.limiter.Release()

	return e.Embedder.Embed(ctx, text)
}

func (e *throttledEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	defer e.limiter.Release()

	return e.Embedder.BatchEmbed(ctx, texts)
}
