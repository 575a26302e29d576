package vectorindex

import (
	"context"

	"github.com/samber/mo"
)

// Store はベクトルストアの永続化インターフェース
type Store interface {
	// GetCollection は名前でコレクションを取得する
	GetCollection(ctx context.Context, name string) (mo.Option[*Collection], error)

	// CreateCollection はコレクションを作成する。
	// 同名のコレクションが既にあればそれを返す（束縛の確認は呼び出し側が行う）
	CreateCollection(ctx context.Context, params CreateParams) (*Collection, error)

	// DropCollection はコレクションとそのチャンクを削除する。存在しない場合は何もしない
	DropCollection(ctx context.Context, name string) error

	// InsertChunks はチャンクを追加する。
	// collection が開いた後に作り直されていれば apperr.ErrCollectionRecreated を返す
	InsertChunks(ctx context.Context, collection *Collection, chunks []EmbeddedChunk) error

	// Search はクエリベクトルに近い順に最大 k 件を返す
	Search(ctx context.Context, collection *Collection, query []float32, k int) ([]*ScoredChunk, error)
}

// Recreator はコレクションの削除と再作成を1つの操作として実行できるストア
type Recreator interface {
	RecreateCollection(ctx context.Context, params CreateParams) (*Collection, error)
}
