package llm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelPricing はモデルごとの価格情報
type ModelPricing struct {
	InputPricePer1kTokens  float64 `yaml:"input_price_per_1k_tokens"`
	OutputPricePer1kTokens float64 `yaml:"output_price_per_1k_tokens"`
	Provider               string  `yaml:"provider"`
	Description            string  `yaml:"description"`
}

// PricingConfig は価格設定ファイルの構造
type PricingConfig struct {
	Models       map[string]ModelPricing `yaml:"models"`
	DefaultModel string                  `yaml:"default_model"`
}

// DefaultPricing は組み込みの価格表（USD / 1kトークン）
func DefaultPricing() *PricingConfig {
	return &PricingConfig{
		Models: map[string]ModelPricing{
			"gpt-3.5-turbo": {
				InputPricePer1kTokens:  0.0005,
				OutputPricePer1kTokens: 0.0015,
				Provider:               "openai",
			},
			"gpt-4o-mini": {
				InputPricePer1kTokens:  0.00015,
				OutputPricePer1kTokens: 0.0006,
				Provider:               "openai",
			},
			"gpt-4o": {
				InputPricePer1kTokens:  0.0025,
				OutputPricePer1kTokens: 0.010,
				Provider:               "openai",
			},
			"gpt-4-turbo": {
				InputPricePer1kTokens:  0.01,
				OutputPricePer1kTokens: 0.03,
				Provider:               "openai",
			},
		},
		DefaultModel: "gpt-3.5-turbo",
	}
}

// LoadPricing は価格設定ファイルを読み込む。
// path が空の場合は組み込みの価格表を返す。ファイルの内容は組み込み値を上書きする
func LoadPricing(path string) (*PricingConfig, error) {
	pricing := DefaultPricing()
	if path == "" {
		return pricing, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing config: %w", err)
	}

	var override PricingConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse pricing config: %w", err)
	}

	for name, p := range override.Models {
		pricing.Models[name] = p
	}
	if override.DefaultModel != "" {
		pricing.DefaultModel = override.DefaultModel
	}
	return pricing, nil
}

// Lookup はモデルの価格を返す。
// 応答モデル名が日付付き（gpt-4o-mini-2024-07-18 等）の場合は最長一致で解決する
func (p *PricingConfig) Lookup(model string) (ModelPricing, bool) {
	if pricing, ok := p.Models[model]; ok {
		return pricing, true
	}

	best := ""
	for name := range p.Models {
		if len(name) > len(best) && len(model) > len(name) && model[:len(name)] == name && model[len(name)] == '-' {
			best = name
		}
	}
	if best != "" {
		return p.Models[best], true
	}

	if p.DefaultModel != "" {
		pricing, ok := p.Models[p.DefaultModel]
		return pricing, ok
	}
	return ModelPricing{}, false
}

// CalculateCost はトークン使用量からコストを計算する
func (p *PricingConfig) CalculateCost(model string, usage Usage) (float64, error) {
	pricing, ok := p.Lookup(model)
	if !ok {
		return 0, fmt.Errorf("pricing not found for model: %s", model)
	}

	inputCost := float64(usage.PromptTokens) / 1000.0 * pricing.InputPricePer1kTokens
	outputCost := float64(usage.CompletionTokens) / 1000.0 * pricing.OutputPricePer1kTokens

	return inputCost + outputCost, nil
}

// CostReport は1スコープ内の集計結果
type CostReport struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TotalCostUSD     float64 `json:"total_cost"`
	Requests         int     `json:"requests"`
}

// CostScope は計測対象の呼び出しのトークン数とコストを集計する
type CostScope struct {
	mu      sync.Mutex
	pricing *PricingConfig
	report  CostReport
	misses  []string // 価格が見つからなかったモデル
}

// NewCostScope は新しい計測スコープを作成する
func NewCostScope(pricing *PricingConfig) *CostScope {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &CostScope{pricing: pricing}
}

// Record は1回分の使用量を記録する
func (s *CostScope) Record(model string, usage Usage) {
	cost, err := s.pricing.CalculateCost(model, usage)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.report.PromptTokens += usage.PromptTokens
	s.report.CompletionTokens += usage.CompletionTokens
	s.report.TotalTokens += usage.TotalTokens()
	s.report.Requests++
	if err != nil {
		s.misses = append(s.misses, model)
		return
	}
	s.report.TotalCostUSD += cost
}

// Report は現在までの集計を返す
func (s *CostScope) Report() CostReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// UnpricedModels は価格が見つからず0として計上したモデル名を返す
func (s *CostScope) UnpricedModels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.misses))
	copy(out, s.misses)
	return out
}

// Track は Generator をラップし、成功した呼び出しの使用量をこのスコープに記録する
func (s *CostScope) Track(gen Generator) Generator {
	return &trackedGenerator{scope: s, next: gen}
}

type trackedGenerator struct {
	scope *CostScope
	next  Generator
}

func (g *trackedGenerator) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	out, err := g.next.Generate(ctx, req)
	if err != nil {
		return Generation{}, err
	}
	g.scope.Record(out.Model, out.Usage)
	return out, nil
}
