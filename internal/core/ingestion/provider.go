package ingestion

import "context"

// SourceResolver はローカルパス以外のソース（Gitリポジトリ等）をローカルのディレクトリに解決する
type SourceResolver interface {
	// CanResolve は location を扱えるかどうかを返す
	CanResolve(location string) bool

	// Resolve は location を取得し、読み込み可能なローカルパスと後始末の関数を返す
	Resolve(ctx context.Context, location string) (path string, cleanup func(), err error)
}
