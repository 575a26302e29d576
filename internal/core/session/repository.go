package session

import (
	"context"

	"github.com/google/uuid"
)

// Repository はセッション履歴（追記専用ログ）へのデータアクセスを定義する
// テスト時のモック用に消費者側で定義
type Repository interface {
	// Append は新しいターンを追記する（更新は行わない）
	Append(ctx context.Context, sessionID uuid.UUID, query, answer string) (*Turn, error)

	// List はセッションのターンを挿入順で返す。存在しない場合は空スライス
	List(ctx context.Context, sessionID uuid.UUID) ([]*Turn, error)

	// Delete はセッションの全ターンを削除し、削除件数を返す
	Delete(ctx context.Context, sessionID uuid.UUID) (int64, error)
}
