package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/chat-rag/internal/core/session"
)

// SessionRepository は SQLite の chat_turns テーブルを使う session.Repository 実装
type SessionRepository struct {
	db *sql.DB
}

var _ session.Repository = (*SessionRepository)(nil)

func (r *SessionRepository) Append(ctx context.Context, sessionID uuid.UUID, query, answer string) (*session.Turn, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_turns (session_id, query, answer, created_at) VALUES (?, ?, ?, ?)",
		sessionID.String(), query, answer, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get turn id: %w", err)
	}

	return &session.Turn{
		ID:        id,
		SessionID: sessionID,
		Query:     query,
		Answer:    answer,
		CreatedAt: now,
	}, nil
}

func (r *SessionRepository) List(ctx context.Context, sessionID uuid.UUID) ([]*session.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, query, answer, created_at FROM chat_turns WHERE session_id = ? ORDER BY id",
		sessionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns := []*session.Turn{}
	for rows.Next() {
		t := &session.Turn{SessionID: sessionID}
		if err := rows.Scan(&t.ID, &t.Query, &t.Answer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return turns, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM chat_turns WHERE session_id = ?", sessionID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete turns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return n, nil
}
