package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/chat-rag/internal/infra/postgres/sqlc"
)

// TransactionProvider はトランザクションをコールバックの中に閉じ込める。
// コールバックには同じトランザクションに束ねたクエリとロックが渡される
type TransactionProvider struct {
	pool *pgxpool.Pool
}

// NewTransactionProvider は新しいTransactionProviderを作成します
func NewTransactionProvider(pool *pgxpool.Pool) *TransactionProvider {
	return &TransactionProvider{pool: pool}
}

// Adapter は1つのトランザクション内で使うクエリとロック
type Adapter struct {
	Queries *sqlc.Queries
	Locks   *Manager

	tx pgx.Tx
}

// Exec は生のSQLをトランザクション内で実行します（マイグレーション用）
func (a *Adapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.tx.Exec(ctx, sql, args...)
}

// QueryRow は生のSQLをトランザクション内で1行だけ問い合わせます
func (a *Adapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.tx.QueryRow(ctx, sql, args...)
}

// Transact は fn をトランザクション内で実行します。
// fn がエラーを返した場合はロールバックし、そのエラーをそのまま返します
func Transact[T any](ctx context.Context, p *TransactionProvider, fn func(*Adapter) (T, error)) (T, error) {
	var result T
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		out, err := fn(&Adapter{
			Queries: sqlc.New(tx),
			Locks:   NewManager(tx),
			tx:      tx,
		})
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
