package llm

import (
	"fmt"
	"strings"

	"github.com/jinford/chat-rag/internal/core/apperr"
)

const (
	// DefaultAPIKeyPrefix はホスト型APIキーの期待プレフィックス
	DefaultAPIKeyPrefix = "sk"
	// DefaultAPIKeyLength はホスト型APIキーの期待長
	DefaultAPIKeyLength = 51
)

// CredentialPolicy はAPIキーの形式チェック規則。
// プロバイダへの問い合わせは行わず、ローカルで形式だけを確認する
type CredentialPolicy struct {
	Prefix string
	Length int // 0 の場合は長さを検査しない
}

// DefaultCredentialPolicy はデフォルトの形式チェック規則
func DefaultCredentialPolicy() CredentialPolicy {
	return CredentialPolicy{
		Prefix: DefaultAPIKeyPrefix,
		Length: DefaultAPIKeyLength,
	}
}

// Validate はAPIキーの形式を検査する
func (p CredentialPolicy) Validate(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("%w: key is empty", apperr.ErrCredentialInvalid)
	}
	if strings.TrimSpace(apiKey) != apiKey {
		return fmt.Errorf("%w: key has surrounding whitespace", apperr.ErrCredentialInvalid)
	}
	if p.Prefix != "" && !strings.HasPrefix(apiKey, p.Prefix) {
		return fmt.Errorf("%w: key must start with %q", apperr.ErrCredentialInvalid, p.Prefix)
	}
	if p.Length > 0 && len(apiKey) != p.Length {
		return fmt.Errorf("%w: key must be %d characters", apperr.ErrCredentialInvalid, p.Length)
	}
	return nil
}
