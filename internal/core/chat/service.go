package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/session"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/samber/mo"
)

// Retriever は類似チャンクを検索する
type Retriever interface {
	// Resolve はコレクションの存在と、束縛された埋め込みが利用できることを確認する
	Resolve(ctx context.Context, collectionName string) (*vectorindex.Collection, error)
	SimilaritySearch(ctx context.Context, params vectorindex.SearchParams) ([]*vectorindex.ScoredChunk, error)
}

// ModelSource は名前から言語モデルを解決する（通常は llm.Registry）
type ModelSource interface {
	Model(name llm.ModelName) (*llm.Model, error)
}

// ChatService は会話履歴を踏まえた検索拡張生成を提供する
type ChatService struct {
	sessions  *session.SessionService
	retriever Retriever
	models    ModelSource
	pricing   *llm.PricingConfig
	logger    *slog.Logger
}

type ChatServiceOption func(*ChatService)

// WithChatLogger は ChatService にロガーを設定する
func WithChatLogger(logger *slog.Logger) ChatServiceOption {
	return func(s *ChatService) {
		s.logger = logger
	}
}

// WithPricing はコスト計算に使う価格表を設定する
func WithPricing(pricing *llm.PricingConfig) ChatServiceOption {
	return func(s *ChatService) {
		s.pricing = pricing
	}
}

// NewChatService は新しいChatServiceを作成する
func NewChatService(
	sessions *session.SessionService,
	retriever Retriever,
	models ModelSource,
	opts ...ChatServiceOption,
) *ChatService {
	svc := &ChatService{
		sessions:  sessions,
		retriever: retriever,
		models:    models,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.pricing == nil {
		svc.pricing = llm.DefaultPricing()
	}
	return svc
}

// Query は質問に対して会話履歴と検索結果を踏まえた回答を生成し、ターンを保存する
func (s *ChatService) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	// 1. バリデーション（どのステップよりも前に行う）
	if strings.TrimSpace(params.Text) == "" {
		return nil, apperr.ErrEmptyQuery
	}
	sessionID, err := session.ParseSessionID(params.SessionID)
	if err != nil {
		return nil, err
	}
	modelName, err := llm.ParseModelName(string(params.ModelName))
	if err != nil {
		return nil, err
	}
	model, err := s.models.Model(modelName)
	if err != nil {
		return nil, err
	}
	if _, err := s.retriever.Resolve(ctx, params.CollectionName); err != nil {
		return nil, err
	}

	started := time.Now()

	// 2. 会話メモリの読み込み
	memory, err := s.sessions.LoadMemory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	gen := model.Generator
	var scope *llm.CostScope
	if model.Metered {
		scope = llm.NewCostScope(s.pricing)
		gen = scope.Track(gen)
	}

	// 3. 独立した質問への言い換え（履歴がある場合のみ）
	standalone := params.Text
	if !memory.IsEmpty() {
		out, err := gen.Generate(ctx, llm.GenerateRequest{
			Prompt: BuildCondensePrompt(memory.Transcript(), params.Text),
		})
		if err != nil {
			return nil, apperr.Provider("condense question", err)
		}
		if condensed := strings.TrimSpace(out.Text); condensed != "" {
			standalone = condensed
		}
	}

	// 4. 検索
	chunks, err := s.retriever.SimilaritySearch(ctx, vectorindex.SearchParams{
		CollectionName: params.CollectionName,
		Query:          standalone,
		K:              params.K,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	// 5. 回答生成
	out, err := gen.Generate(ctx, llm.GenerateRequest{
		Prompt: BuildAnswerPrompt(standalone, chunks),
	})
	if err != nil {
		return nil, apperr.Provider("generate answer", err)
	}
	answer := strings.TrimSpace(out.Text)

	// 6. 出典の重複排除（検索順を保持）
	sources := uniqueSources(chunks)

	// 7. ターンの保存（質問はユーザーの入力そのまま）
	if _, err := s.sessions.Append(ctx, sessionID, params.Text, answer); err != nil {
		return nil, err
	}

	result := &QueryResult{
		Answer:             answer,
		Cost:               mo.None[llm.CostReport](),
		Sources:            sources,
		StandaloneQuestion: standalone,
	}
	if scope != nil {
		result.Cost = mo.Some(scope.Report())
	}

	s.logger.Info("query completed",
		"sessionID", sessionID.String(),
		"model", modelName,
		"condensed", !memory.IsEmpty(),
		"chunks", len(chunks),
		"sources", len(sources),
		"elapsed", time.Since(started),
	)

	return result, nil
}

// DeleteSession はセッションの履歴をすべて削除する
func (s *ChatService) DeleteSession(ctx context.Context, rawSessionID string) (*DeleteResult, error) {
	sessionID, err := session.ParseSessionID(rawSessionID)
	if err != nil {
		return nil, err
	}

	deleted, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &DeleteResult{
		SessionID: sessionID.String(),
		Deleted:   deleted.Deleted,
		Message:   fmt.Sprintf("Session id %s Deleted", sessionID),
	}, nil
}

// History はセッションのターンを挿入順で返す。存在しないセッションは空を返す
func (s *ChatService) History(ctx context.Context, rawSessionID string) ([]*session.Turn, error) {
	sessionID, err := session.ParseSessionID(rawSessionID)
	if err != nil {
		return nil, err
	}
	return s.sessions.List(ctx, sessionID)
}

func uniqueSources(chunks []*vectorindex.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		sources = append(sources, c.Source)
	}
	return sources
}
