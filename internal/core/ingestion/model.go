package ingestion

import "github.com/jinford/chat-rag/internal/core/llm"

// Document は読み込み済みのテキスト文書
type Document struct {
	// Source は文書の出所（読み込んだファイルのパス）
	Source  string
	Content string
}

// IngestParams は取り込みパラメータ
type IngestParams struct {
	// SourcePath はディレクトリ・ファイルのパス、またはGitリポジトリのURL
	SourcePath        string
	EmbeddingProvider llm.EmbeddingProvider
	CollectionName    string
	// DropExisting が true の場合はコレクションを作り直す
	DropExisting bool
}

// IngestResult は取り込み結果
type IngestResult struct {
	CollectionName    string                `json:"collection_name"`
	EmbeddingProvider llm.EmbeddingProvider `json:"embedding_provider"`
	Documents         int                   `json:"documents"`
	Chunks            int                   `json:"chunks"`
	SkippedFiles      int                   `json:"skipped_files"`
}
