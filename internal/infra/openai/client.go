package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-3.5-turbo"

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second
)

var (
	// ErrEmptyCompletion は応答に選択肢が含まれない場合のエラー
	ErrEmptyCompletion = errors.New("no completion choices returned")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Client は OpenAI 互換のチャットAPIを使用した llm.Generator 実装
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	maxRetries  int
}

type clientOptions struct {
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithModel はモデル名を上書きする
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL はAPIのベースURLを上書きする（ローカルの互換サーバー等）
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithTemperature は生成時の temperature を設定する
func WithTemperature(t float64) ClientOption {
	return func(o *clientOptions) {
		o.temperature = t
	}
}

// WithMaxRetries はレート制限(429)時の最大リトライ回数を設定する。0 はリトライしない
func WithMaxRetries(n int) ClientOption {
	return func(o *clientOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// NewClient は新しい Client を作成する。APIキーの形式チェックは呼び出し側で行う
func NewClient(apiKey string, opts ...ClientOption) *Client {
	options := clientOptions{model: DefaultModel}
	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		client:      newAPI(apiKey, options.baseURL),
		model:       options.model,
		temperature: options.temperature,
		maxRetries:  options.maxRetries,
	}
}

// newAPI はSDKのクライアントを作る。
// リトライは Generate 側で行うのでSDKの自動リトライは止める
func newAPI(apiKey, baseURL string) openai.Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(reqOpts...)
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Generate はプロンプトからテキストを生成する
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (llm.Generation, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return llm.Generation{}, ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(req.Prompt),
			},
			Temperature: openai.Float(c.temperature),
		}
		if len(req.Stop) > 0 {
			params.Stop = openai.ChatCompletionNewParamsStopUnion{
				OfStringArray: req.Stop,
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return llm.Generation{}, fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return llm.Generation{}, ErrEmptyCompletion
		}

		model := completion.Model
		if model == "" {
			model = c.model
		}

		return llm.Generation{
			Text:  completion.Choices[0].Message.Content,
			Model: model,
			Usage: llm.Usage{
				PromptTokens:     int(completion.Usage.PromptTokens),
				CompletionTokens: int(completion.Usage.CompletionTokens),
			},
		}, nil
	}

	return llm.Generation{}, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// インターフェース実装の確認
var _ llm.Generator = (*Client)(nil)
