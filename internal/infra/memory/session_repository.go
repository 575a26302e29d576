package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/chat-rag/internal/core/session"
)

// SessionRepository はプロセス内で会話履歴を保持する session.Repository 実装
type SessionRepository struct {
	mu     sync.RWMutex
	nextID int64
	turns  map[uuid.UUID][]*session.Turn
	now    func() time.Time
}

// NewSessionRepository は空の SessionRepository を作成する
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		turns: make(map[uuid.UUID][]*session.Turn),
		now:   time.Now,
	}
}

// Append はターンを末尾に追加する
func (r *SessionRepository) Append(_ context.Context, sessionID uuid.UUID, query, answer string) (*session.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	turn := &session.Turn{
		ID:        r.nextID,
		SessionID: sessionID,
		Query:     query,
		Answer:    answer,
		CreatedAt: r.now().UTC(),
	}
	r.turns[sessionID] = append(r.turns[sessionID], turn)

	out := *turn
	return &out, nil
}

// List はセッションのターンを挿入順に返す
func (r *SessionRepository) List(_ context.Context, sessionID uuid.UUID) ([]*session.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.turns[sessionID]
	out := make([]*session.Turn, 0, len(stored))
	for _, t := range stored {
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

// Delete はセッションのターンをすべて削除し、削除件数を返す
func (r *SessionRepository) Delete(_ context.Context, sessionID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.turns[sessionID]))
	delete(r.turns, sessionID)
	return n, nil
}

var _ session.Repository = (*SessionRepository)(nil)
