package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/chat-rag/internal/core/session"
	"github.com/jinford/chat-rag/internal/infra/postgres/sqlc"
)

// SessionRepository は session.Repository を実装する PostgreSQL リポジトリ。
// 1ターンは1つの INSERT で追記し、順序は BIGSERIAL の id で決まる
type SessionRepository struct {
	q sqlc.Querier
}

// NewSessionRepository は新しい SessionRepository を返す。
func NewSessionRepository(q sqlc.Querier) *SessionRepository {
	return &SessionRepository{q: q}
}

var _ session.Repository = (*SessionRepository)(nil)

func (r *SessionRepository) Append(ctx context.Context, sessionID uuid.UUID, query, answer string) (*session.Turn, error) {
	row, err := r.q.AppendTurn(ctx, sqlc.AppendTurnParams{
		SessionID: pgUUID(sessionID),
		Query:     query,
		Answer:    answer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert turn: %w", err)
	}
	return toTurn(row), nil
}

func (r *SessionRepository) List(ctx context.Context, sessionID uuid.UUID) ([]*session.Turn, error) {
	rows, err := r.q.ListTurnsBySession(ctx, pgUUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}

	turns := make([]*session.Turn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, toTurn(row))
	}
	return turns, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	n, err := r.q.DeleteTurnsBySession(ctx, pgUUID(sessionID))
	if err != nil {
		return 0, fmt.Errorf("failed to delete turns: %w", err)
	}
	return n, nil
}

func toTurn(row sqlc.ChatTurn) *session.Turn {
	return &session.Turn{
		ID:        row.ID,
		SessionID: fromPgUUID(row.SessionID),
		Query:     row.Query,
		Answer:    row.Answer,
		CreatedAt: fromPgTime(row.CreatedAt),
	}
}
