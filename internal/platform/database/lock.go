package database

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Manager はトランザクションに紐づくアドバイザリロックを扱う
type Manager struct {
	tx pgx.Tx
}

// NewManager は tx 上でロックを取る Manager を返す
func NewManager(tx pgx.Tx) *Manager {
	return &Manager{tx: tx}
}

// GenerateLockID は parts を連結した文字列の SHA-256 先頭8バイトをロックIDにする
func GenerateLockID(parts ...string) int64 {
	sum := sha256.Sum256([]byte(strings.Join(parts, "")))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Acquire は lockID のロックを取得するまで待つ。解放はコミットかロールバック時
func (m *Manager) Acquire(ctx context.Context, lockID int64) error {
	if _, err := m.tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock %d: %w", lockID, err)
	}
	return nil
}

// AcquireFor は "namespace:key" から作ったIDでロックを取得する
func (m *Manager) AcquireFor(ctx context.Context, namespace, key string) error {
	return m.Acquire(ctx, GenerateLockID(namespace, ":", key))
}
