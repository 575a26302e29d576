package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/chat"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/session"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/jinford/chat-rag/internal/infra/memory"
)

// scriptedGenerator は呼び出し順に応答を返し、受け取ったプロンプトを記録する
type scriptedGenerator struct {
	replies []string
	failAt  int // 1始まり。0 は失敗しない
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.GenerateRequest) (llm.Generation, error) {
	g.prompts = append(g.prompts, req.Prompt)
	n := len(g.prompts)
	if g.failAt == n {
		return llm.Generation{}, errors.New("connection refused")
	}
	reply := "answer"
	if n <= len(g.replies) {
		reply = g.replies[n-1]
	}
	return llm.Generation{
		Text:  reply,
		Model: "gpt-3.5-turbo",
		Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 10},
	}, nil
}

type stubRetriever struct {
	chunks     []*vectorindex.ScoredChunk
	err        error
	resolveErr error
	queries    []string
}

func (r *stubRetriever) Resolve(_ context.Context, name string) (*vectorindex.Collection, error) {
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	return &vectorindex.Collection{Name: name, EmbeddingProvider: llm.EmbeddingLocal}, nil
}

func (r *stubRetriever) SimilaritySearch(_ context.Context, params vectorindex.SearchParams) ([]*vectorindex.ScoredChunk, error) {
	r.queries = append(r.queries, params.Query)
	if r.err != nil {
		return nil, r.err
	}
	return r.chunks, nil
}

type fixture struct {
	repo      *memory.SessionRepository
	sessions  *session.SessionService
	retriever *stubRetriever
	gen       *scriptedGenerator
	svc       *chat.ChatService
}

func newFixture(t *testing.T, metered bool) *fixture {
	t.Helper()

	repo := memory.NewSessionRepository()
	sessions := session.NewSessionService(repo)
	retriever := &stubRetriever{chunks: []*vectorindex.ScoredChunk{
		{Chunk: vectorindex.Chunk{Text: "chunk one", Source: "docs/a.txt"}, Score: 0.9},
		{Chunk: vectorindex.Chunk{Text: "chunk two", Source: "docs/b.txt"}, Score: 0.8},
		{Chunk: vectorindex.Chunk{Text: "chunk three", Source: "docs/a.txt"}, Score: 0.7},
	}}
	gen := &scriptedGenerator{}

	reg := llm.NewRegistry()
	reg.RegisterModel(&llm.Model{Name: llm.ModelHosted, Generator: gen, Metered: metered})
	reg.RegisterModel(&llm.Model{Name: llm.ModelLocalA, Generator: gen})
	reg.DisableModel(llm.ModelLocalB, apperr.ErrModelWeightsNotFound)

	return &fixture{
		repo:      repo,
		sessions:  sessions,
		retriever: retriever,
		gen:       gen,
		svc:       chat.NewChatService(sessions, retriever, reg),
	}
}

func newSessionID() string {
	return uuid.NewString()
}

func TestChatService_EmptyHistorySkipsCondensation(t *testing.T) {
	f := newFixture(t, true)
	sid := newSessionID()

	result, err := f.svc.Query(context.Background(), chat.QueryParams{Text: "What is TAC?", SessionID: sid})
	require.NoError(t, err)

	// 回答生成の1回だけ呼ばれる
	require.Len(t, f.gen.prompts, 1)
	assert.Contains(t, f.gen.prompts[0], "Question: What is TAC?\nHelpful Answer:")
	assert.Contains(t, f.gen.prompts[0], "chunk one\n\nchunk two\n\nchunk three")
	assert.Equal(t, []string{"What is TAC?"}, f.retriever.queries)
	assert.Equal(t, "What is TAC?", result.StandaloneQuestion)
	assert.Equal(t, "answer", result.Answer)
}

func TestChatService_HistoryTriggersCondensation(t *testing.T) {
	f := newFixture(t, true)
	sid := newSessionID()
	ctx := context.Background()

	id, err := session.ParseSessionID(sid)
	require.NoError(t, err)
	_, err = f.sessions.Append(ctx, id, "Who wrote Dune?", "Frank Herbert.")
	require.NoError(t, err)

	f.gen.replies = []string{"  When was Dune by Frank Herbert published?  ", "1965."}

	result, err := f.svc.Query(ctx, chat.QueryParams{Text: "When was it published?", SessionID: sid})
	require.NoError(t, err)

	require.Len(t, f.gen.prompts, 2)
	assert.Contains(t, f.gen.prompts[0], "Chat History:\nHuman: Who wrote Dune?\nAssistant: Frank Herbert.\n")
	assert.Contains(t, f.gen.prompts[0], "Follow-Up Input: When was it published?\nStandalone Question:")
	assert.Equal(t, []string{"When was Dune by Frank Herbert published?"}, f.retriever.queries)
	assert.Contains(t, f.gen.prompts[1], "Question: When was Dune by Frank Herbert published?")
	assert.Equal(t, "1965.", result.Answer)

	// 保存される質問は言い換え前の入力
	turns, err := f.sessions.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "When was it published?", turns[1].Query)
	assert.Equal(t, "1965.", turns[1].Answer)
}

func TestChatService_EmptyCondensationFallsBackToRawQuestion(t *testing.T) {
	f := newFixture(t, false)
	sid := newSessionID()
	ctx := context.Background()

	id, _ := session.ParseSessionID(sid)
	_, err := f.sessions.Append(ctx, id, "q", "a")
	require.NoError(t, err)
	f.gen.replies = []string{"   ", "ok"}

	result, err := f.svc.Query(ctx, chat.QueryParams{Text: "follow up", SessionID: sid})
	require.NoError(t, err)
	assert.Equal(t, "follow up", result.StandaloneQuestion)
}

func TestChatService_SourcesAreDeduplicated(t *testing.T) {
	f := newFixture(t, true)

	result, err := f.svc.Query(context.Background(), chat.QueryParams{Text: "q", SessionID: newSessionID()})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.txt", "docs/b.txt"}, result.Sources)
}

func TestChatService_CostReportedOnlyForMeteredModels(t *testing.T) {
	t.Run("metered", func(t *testing.T) {
		f := newFixture(t, true)
		result, err := f.svc.Query(context.Background(), chat.QueryParams{Text: "q", SessionID: newSessionID()})
		require.NoError(t, err)

		report, ok := result.Cost.Get()
		require.True(t, ok)
		assert.Equal(t, 1, report.Requests)
		assert.Equal(t, 110, report.TotalTokens)
		assert.Greater(t, report.TotalCostUSD, 0.0)
	})

	t.Run("local model", func(t *testing.T) {
		f := newFixture(t, true)
		result, err := f.svc.Query(context.Background(), chat.QueryParams{
			Text:      "q",
			SessionID: newSessionID(),
			ModelName: llm.ModelLocalA,
		})
		require.NoError(t, err)
		assert.True(t, result.Cost.IsAbsent())
	})
}

func TestChatService_FailureDoesNotPersistTurn(t *testing.T) {
	tests := []struct {
		name      string
		history   bool
		failAt    int
		retrieval error
		wantKind  apperr.Kind
	}{
		{name: "condensation fails", history: true, failAt: 1, wantKind: apperr.KindProvider},
		{name: "generation fails", failAt: 1, wantKind: apperr.KindProvider},
		{name: "collection missing", retrieval: apperr.ErrCollectionNotFound, wantKind: apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			ctx := context.Background()
			sid := newSessionID()
			id, _ := session.ParseSessionID(sid)

			before := 0
			if tt.history {
				_, err := f.sessions.Append(ctx, id, "q0", "a0")
				require.NoError(t, err)
				before = 1
			}
			f.gen.failAt = tt.failAt
			f.retriever.err = tt.retrieval

			_, err := f.svc.Query(ctx, chat.QueryParams{Text: "q1", SessionID: sid})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))

			turns, err := f.sessions.List(ctx, id)
			require.NoError(t, err)
			assert.Len(t, turns, before)
		})
	}
}

func TestChatService_ValidationHappensBeforeAnyStep(t *testing.T) {
	tests := []struct {
		name     string
		params   chat.QueryParams
		wantErr  error
		wantKind apperr.Kind
	}{
		{"empty text", chat.QueryParams{Text: "  ", SessionID: newSessionID()}, apperr.ErrEmptyQuery, apperr.KindValidation},
		{"bad session id", chat.QueryParams{Text: "q", SessionID: "abc"}, apperr.ErrInvalidSessionID, apperr.KindValidation},
		{"unknown model", chat.QueryParams{Text: "q", SessionID: newSessionID(), ModelName: "gpt-9"}, apperr.ErrInvalidConfiguration, apperr.KindConfiguration},
		{"missing weights", chat.QueryParams{Text: "q", SessionID: newSessionID(), ModelName: llm.ModelLocalB}, apperr.ErrModelWeightsNotFound, apperr.KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			_, err := f.svc.Query(context.Background(), tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Empty(t, f.gen.prompts)
			assert.Empty(t, f.retriever.queries)
		})
	}
}

func TestChatService_UnavailableCollectionEmbedderFailsBeforeCondensation(t *testing.T) {
	tests := []struct {
		name       string
		resolveErr error
		wantKind   apperr.Kind
	}{
		{"bound embedder disabled", apperr.ErrCredentialInvalid, apperr.KindConfiguration},
		{"collection missing", apperr.ErrCollectionNotFound, apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			ctx := context.Background()
			sid := newSessionID()
			id, _ := session.ParseSessionID(sid)
			_, err := f.sessions.Append(ctx, id, "q0", "a0")
			require.NoError(t, err)
			f.retriever.resolveErr = tt.resolveErr

			_, err = f.svc.Query(ctx, chat.QueryParams{Text: "q1", SessionID: sid, ModelName: llm.ModelLocalA})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.resolveErr)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Empty(t, f.gen.prompts)
			assert.Empty(t, f.retriever.queries)
		})
	}
}

func TestChatService_DeleteSession(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	sid := newSessionID()

	_, err := f.svc.DeleteSession(ctx, sid)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
	assert.True(t, strings.Contains(err.Error(), sid))

	_, err = f.svc.Query(ctx, chat.QueryParams{Text: "q", SessionID: sid})
	require.NoError(t, err)

	result, err := f.svc.DeleteSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "Session id "+sid+" Deleted", result.Message)
	assert.Equal(t, int64(1), result.Deleted)

	history, err := f.svc.History(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, history)
}
