package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	out   Generation
	err   error
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, _ GenerateRequest) (Generation, error) {
	s.calls++
	if s.err != nil {
		return Generation{}, s.err
	}
	return s.out, nil
}

func TestLoadPricing_OverridesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "llm_pricing.yaml")
	content := `
models:
  gpt-3.5-turbo:
    input_price_per_1k_tokens: 0.001
    output_price_per_1k_tokens: 0.002
    provider: openai
  my-model:
    input_price_per_1k_tokens: 0.1
    output_price_per_1k_tokens: 0.2
default_model: my-model
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	pricing, err := LoadPricing(configPath)
	require.NoError(t, err)

	assert.Equal(t, "my-model", pricing.DefaultModel)
	assert.Equal(t, 0.001, pricing.Models["gpt-3.5-turbo"].InputPricePer1kTokens)
	// 上書きしていないモデルは組み込み値のまま
	assert.Equal(t, 0.0025, pricing.Models["gpt-4o"].InputPricePer1kTokens)
}

func TestLoadPricing_EmptyPathUsesDefaults(t *testing.T) {
	pricing, err := LoadPricing("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", pricing.DefaultModel)
}

func TestLoadPricing_MissingFile(t *testing.T) {
	_, err := LoadPricing(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestPricingConfig_CalculateCost(t *testing.T) {
	pricing := DefaultPricing()

	tests := []struct {
		name  string
		model string
		usage Usage
		want  float64
	}{
		{"exact model", "gpt-4o", Usage{PromptTokens: 1000, CompletionTokens: 1000}, 0.0125},
		{"dated snapshot", "gpt-4o-mini-2024-07-18", Usage{PromptTokens: 2000, CompletionTokens: 1000}, 0.0009},
		{"unknown falls back to default", "something-else", Usage{PromptTokens: 1000}, 0.0005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricing.CalculateCost(tt.model, tt.usage)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPricingConfig_CalculateCost_NoPricing(t *testing.T) {
	pricing := &PricingConfig{Models: map[string]ModelPricing{}}
	_, err := pricing.CalculateCost("gpt-4o", Usage{PromptTokens: 1})
	require.Error(t, err)
}

func TestCostScope_TrackAccumulatesSuccessfulCalls(t *testing.T) {
	scope := NewCostScope(DefaultPricing())
	gen := &stubGenerator{out: Generation{
		Text:  "ok",
		Model: "gpt-3.5-turbo",
		Usage: Usage{PromptTokens: 1000, CompletionTokens: 500},
	}}
	tracked := scope.Track(gen)

	for range 2 {
		_, err := tracked.Generate(context.Background(), GenerateRequest{Prompt: "p"})
		require.NoError(t, err)
	}

	report := scope.Report()
	assert.Equal(t, 2, report.Requests)
	assert.Equal(t, 2000, report.PromptTokens)
	assert.Equal(t, 1000, report.CompletionTokens)
	assert.Equal(t, 3000, report.TotalTokens)
	assert.InDelta(t, 2*(0.0005+0.00075), report.TotalCostUSD, 1e-9)
}

func TestCostScope_FailedCallIsNotRecorded(t *testing.T) {
	scope := NewCostScope(nil)
	tracked := scope.Track(&stubGenerator{err: errors.New("boom")})

	_, err := tracked.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, CostReport{}, scope.Report())
}

func TestCostScope_UnpricedModelCountsTokens(t *testing.T) {
	scope := NewCostScope(&PricingConfig{Models: map[string]ModelPricing{}})
	scope.Record("mystery", Usage{PromptTokens: 3, CompletionTokens: 4})

	report := scope.Report()
	assert.Equal(t, 7, report.TotalTokens)
	assert.Zero(t, report.TotalCostUSD)
	assert.Equal(t, []string{"mystery"}, scope.UnpricedModels())
}
