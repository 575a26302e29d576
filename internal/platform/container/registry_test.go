package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/chat-rag/internal/core/apperr"
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/platform/config"
)

// countingServer はリクエスト数を数える OpenAI 互換のテストサーバー
func countingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "ok"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(baseURL, apiKey string) *config.Config {
	return &config.Config{
		OpenAI: config.OpenAIConfig{
			APIKey:       apiKey,
			BaseURL:      baseURL,
			LLMModel:     "gpt-3.5-turbo",
			APIKeyPrefix: "sk",
			APIKeyLength: 51,
		},
		Local: config.LocalConfig{
			WeightsDir:         "does-not-exist",
			EmbeddingDimension: 32,
		},
		Provider: config.ProviderConfig{Timeout: 5 * time.Second},
		Vector:   config.VectorConfig{EmbedConcurrency: 1},
	}
}

func TestNewRegistry_InvalidCredentialMakesNoNetworkCalls(t *testing.T) {
	srv, hits := countingServer(t)

	for _, key := range []string{"", "sk-short", "pk" + strings.Repeat("x", 49), " sk" + strings.Repeat("x", 48)} {
		reg := NewRegistry(testConfig(srv.URL, key), nil)

		_, err := reg.Model(llm.ModelHosted)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrCredentialInvalid)
		assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))

		_, err = reg.Embedder(llm.EmbeddingHosted)
		assert.ErrorIs(t, err, apperr.ErrCredentialInvalid)
	}

	assert.Zero(t, hits.Load())
}

func TestNewRegistry_ValidCredentialRegistersMeteredModel(t *testing.T) {
	srv, hits := countingServer(t)
	reg := NewRegistry(testConfig(srv.URL, "sk"+strings.Repeat("a", 49)), nil)

	// 登録だけでは通信しない
	assert.Zero(t, hits.Load())

	model, err := reg.Model(llm.ModelHosted)
	require.NoError(t, err)
	assert.True(t, model.Metered)

	out, err := model.Generator.Generate(context.Background(), llm.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewRegistry_LocalProviders(t *testing.T) {
	cfg := testConfig("", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-gpt4all-j.bin"), []byte("weights"), 0o644))
	cfg.Local.WeightsDir = dir

	reg := NewRegistry(cfg, nil)

	emb, err := reg.Embedder(llm.EmbeddingLocal)
	require.NoError(t, err)
	assert.Equal(t, 32, emb.Dimension())

	modelA, err := reg.Model(llm.ModelLocalA)
	require.NoError(t, err)
	assert.False(t, modelA.Metered)

	_, err = reg.Model(llm.ModelLocalB)
	assert.ErrorIs(t, err, apperr.ErrModelWeightsNotFound)
}
