package chat

import (
	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/samber/mo"
)

// QueryParams は会話型検索のパラメータ
type QueryParams struct {
	Text           string // ユーザーの質問文（そのまま履歴に保存される）
	SessionID      string // UUID v4
	ModelName      llm.ModelName
	CollectionName string
	K              int // 0 の場合は既定値
}

// QueryResult は会話型検索の結果
type QueryResult struct {
	Answer string
	// Cost は計測対象のモデルの場合のみ値を持つ
	Cost    mo.Option[llm.CostReport]
	Sources []string
	// StandaloneQuestion は検索と回答生成に使った質問
	StandaloneQuestion string
}

// DeleteResult はセッション削除の結果
type DeleteResult struct {
	SessionID string
	Deleted   int64
	Message   string
}
