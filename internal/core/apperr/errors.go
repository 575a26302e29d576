package apperr

import (
	"errors"
	"fmt"
)

// 種別を表すセンチネルエラー。個別のエラーはいずれかをラップする。
var (
	// ErrValidation は入力不正（空の質問、不正なUUID、存在しないパス等）
	ErrValidation = errors.New("validation error")

	// ErrConfiguration はプロバイダ選択・認証情報・重みファイル等の設定不備
	ErrConfiguration = errors.New("configuration error")

	// ErrProvider は埋め込み・LLM呼び出しの失敗
	ErrProvider = errors.New("provider error")

	// ErrNotFound はコレクションやセッションが存在しない
	ErrNotFound = errors.New("not found")
)

// Validation
var (
	ErrInvalidSessionID          = fmt.Errorf("%w: session id must be a uuid4", ErrValidation)
	ErrEmptyQuery                = fmt.Errorf("%w: text must be provided", ErrValidation)
	ErrSourcePathNotFound        = fmt.Errorf("%w: source path does not exist", ErrValidation)
	ErrEmbeddingProviderMismatch = fmt.Errorf("%w: embedding provider does not match collection", ErrValidation)
)

// Configuration
var (
	ErrInvalidConfiguration = fmt.Errorf("%w: invalid provider selection", ErrConfiguration)
	ErrCredentialInvalid    = fmt.Errorf("%w: the API key is not valid or not provided", ErrConfiguration)
	ErrModelWeightsNotFound = fmt.Errorf("%w: model weights are not found", ErrConfiguration)
	ErrModelUnavailable     = fmt.Errorf("%w: model is not available", ErrConfiguration)
)

// Provider
var (
	ErrProviderTimeout   = fmt.Errorf("%w: call timed out", ErrProvider)
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrProvider)
)

// NotFound
var (
	ErrCollectionNotFound = fmt.Errorf("%w: collection", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("%w: session", ErrNotFound)

	// ErrCollectionRecreated は開いた後にコレクションが作り直された（古いハンドルへの書き込み）
	ErrCollectionRecreated = fmt.Errorf("%w was recreated since it was opened", ErrCollectionNotFound)
)

// Kind はエラー種別
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindProvider      Kind = "provider"
	KindNotFound      Kind = "not_found"
)

// KindOf はエラーチェーンから種別を判定する
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrProvider):
		return KindProvider
	default:
		return KindUnknown
	}
}

// Provider はプロバイダ呼び出しのエラーを ErrProvider でラップする。
// 既にプロバイダエラーであればそのまま返す。
func Provider(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}
