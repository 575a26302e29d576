package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/chat"
	"github.com/jinford/chat-rag/internal/core/ingestion"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/session"
)

type fakeIngester struct {
	params ingestion.IngestParams
	result *ingestion.IngestResult
	err    error
}

func (f *fakeIngester) Ingest(ctx context.Context, params ingestion.IngestParams) (*ingestion.IngestResult, error) {
	f.params = params
	return f.result, f.err
}

type fakeChatter struct {
	queryParams chat.QueryParams
	queryResult *chat.QueryResult
	deleted     string
	turns       []*session.Turn
	err         error
}

func (f *fakeChatter) Query(ctx context.Context, params chat.QueryParams) (*chat.QueryResult, error) {
	f.queryParams = params
	return f.queryResult, f.err
}

func (f *fakeChatter) DeleteSession(ctx context.Context, rawSessionID string) (*chat.DeleteResult, error) {
	f.deleted = rawSessionID
	if f.err != nil {
		return nil, f.err
	}
	return &chat.DeleteResult{SessionID: rawSessionID, Message: fmt.Sprintf("Session id %s Deleted", rawSessionID)}, nil
}

func (f *fakeChatter) History(ctx context.Context, rawSessionID string) ([]*session.Turn, error) {
	return f.turns, f.err
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Ingest(t *testing.T) {
	ing := &fakeIngester{result: &ingestion.IngestResult{CollectionName: "docs", Documents: 3, Chunks: 12}}
	srv := New(ing, &fakeChatter{})

	rec := doJSON(t, srv, http.MethodPost, "/doc_ingestion", map[string]any{
		"source_path":        "./docs",
		"embedding_provider": "local",
		"collection_name":    "docs",
		"drop_existing":      true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "docs", resp["collection"])
	assert.EqualValues(t, 3, resp["files"])
	assert.EqualValues(t, 12, resp["chunks"])

	assert.Equal(t, llm.EmbeddingLocal, ing.params.EmbeddingProvider)
	assert.True(t, ing.params.DropExisting)
}

func TestServer_IngestUnknownProviderIsRejectedBeforeIngesting(t *testing.T) {
	ing := &fakeIngester{}
	srv := New(ing, &fakeChatter{})

	rec := doJSON(t, srv, http.MethodPost, "/doc_ingestion", map[string]any{
		"source_path":        "./docs",
		"embedding_provider": "word2vec",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, ing.params.SourcePath)
}

func TestServer_QueryMeteredModelReportsCost(t *testing.T) {
	ch := &fakeChatter{queryResult: &chat.QueryResult{
		Answer:  "Paris",
		Sources: []string{"france.txt"},
		Cost: mo.Some(llm.CostReport{
			PromptTokens:     10,
			CompletionTokens: 2,
			TotalTokens:      12,
			TotalCostUSD:     0.5,
			Requests:         2,
		}),
	}}
	srv := New(&fakeIngester{}, ch)

	rec := doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"text":       "capital of France?",
		"session_id": "9b2e1c4a-3f5d-4e8b-9a7c-1d2e3f4a5b6c",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Answer  string         `json:"answer"`
		Cost    *float64       `json:"cost"`
		Sources []string       `json:"sources"`
		Usage   map[string]int `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Paris", resp.Answer)
	require.NotNil(t, resp.Cost)
	assert.InDelta(t, 0.5, *resp.Cost, 1e-9)
	assert.Equal(t, []string{"france.txt"}, resp.Sources)
	assert.Equal(t, 12, resp.Usage["total_tokens"])
	assert.Equal(t, llm.ModelHosted, ch.queryParams.ModelName)
}

func TestServer_QueryUnmeteredModelHasNullCost(t *testing.T) {
	ch := &fakeChatter{queryResult: &chat.QueryResult{
		Answer: "I don't know",
		Cost:   mo.None[llm.CostReport](),
	}}
	srv := New(&fakeIngester{}, ch)

	rec := doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"text":       "anything",
		"session_id": "9b2e1c4a-3f5d-4e8b-9a7c-1d2e3f4a5b6c",
		"model_name": "local-variant-a",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "cost")
	assert.Nil(t, resp["cost"])
	assert.Nil(t, resp["usage"])
	assert.Equal(t, []any{}, resp["sources"])
	assert.Equal(t, llm.ModelLocalA, ch.queryParams.ModelName)
}

func TestServer_DeleteAndHistory(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ch := &fakeChatter{turns: []*session.Turn{
		{ID: 1, Query: "q1", Answer: "a1", CreatedAt: created},
		{ID: 2, Query: "q2", Answer: "a2", CreatedAt: created},
	}}
	srv := New(&fakeIngester{}, ch)
	sid := "9b2e1c4a-3f5d-4e8b-9a7c-1d2e3f4a5b6c"

	rec := doJSON(t, srv, http.MethodGet, "/sessions/"+sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		SessionID string `json:"session_id"`
		Turns     []struct {
			Query     string    `json:"query"`
			Answer    string    `json:"answer"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, sid, hist.SessionID)
	require.Len(t, hist.Turns, 2)
	assert.Equal(t, "q1", hist.Turns[0].Query)
	assert.Equal(t, "a2", hist.Turns[1].Answer)
	assert.True(t, created.Equal(hist.Turns[0].CreatedAt))

	rec = doJSON(t, srv, http.MethodPost, "/delete", map[string]any{"session_id": sid})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Session id `+sid+` Deleted"}`, rec.Body.String())
	assert.Equal(t, sid, ch.deleted)
}

func TestServer_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.ErrEmptyQuery, http.StatusUnprocessableEntity},
		{"configuration", apperr.ErrCredentialInvalid, http.StatusUnprocessableEntity},
		{"not found", apperr.ErrSessionNotFound, http.StatusNotFound},
		{"provider timeout", apperr.Provider("generate answer", apperr.ErrProviderTimeout), http.StatusGatewayTimeout},
		{"provider", apperr.Provider("generate answer", errors.New("connection refused")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(&fakeIngester{}, &fakeChatter{err: tt.err})

			rec := doJSON(t, srv, http.MethodPost, "/delete", map[string]any{"session_id": "x"})
			assert.Equal(t, tt.status, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["detail"])
		})
	}
}

func TestServer_MalformedBodyIsValidationError(t *testing.T) {
	srv := New(&fakeIngester{}, &fakeChatter{})

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	srv := New(&fakeIngester{}, &fakeChatter{})

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, listener, New(&fakeIngester{}, &fakeChatter{}), time.Second, nil)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
