package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationLockKey = "schema_migrations"

// Migrate は fsys 内の NNN_name.up.sql を番号順に未適用のものだけ実行します。
// 各マイグレーションは適用記録と同じトランザクションで実行されます
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) (int, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	files, err := upMigrations(fsys)
	if err != nil {
		return 0, err
	}

	tx := NewTransactionProvider(pool)
	applied := 0
	for _, m := range files {
		content, err := fs.ReadFile(fsys, m.name)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", m.name, err)
		}

		done, err := applyMigration(ctx, tx, m.version, string(content))
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
		if done {
			applied++
		}
	}
	return applied, nil
}

func applyMigration(ctx context.Context, tx *TransactionProvider, version int, sql string) (bool, error) {
	return Transact(ctx, tx, func(a *Adapter) (bool, error) {
		// 複数プロセスが同時に起動しても二重適用しない
		if err := a.Locks.AcquireFor(ctx, migrationLockKey, "apply"); err != nil {
			return false, err
		}

		var exists bool
		if err := a.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check migration version: %w", err)
		}
		if exists {
			return false, nil
		}

		if _, err := a.Exec(ctx, sql); err != nil {
			return false, err
		}
		if _, err := a.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			return false, fmt.Errorf("failed to record migration version: %w", err)
		}
		return true, nil
	})
}

type migrationFile struct {
	version int
	name    string
}

// upMigrations は NNN_name.up.sql 形式のファイルを番号順に返します
func upMigrations(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []migrationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		files = append(files, migrationFile{version: version, name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}
