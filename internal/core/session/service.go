package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jinford/chat-rag/internal/core/apperr"
)

// ParseSessionID はセッションIDを検証し、UUID v4 として解釈する
func ParseSessionID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	// uuid.Parse は urn 形式や波括弧も受け付けるため、正規形の長さに限定する
	if len(raw) != 36 {
		return uuid.Nil, fmt.Errorf("%w: %q", apperr.ErrInvalidSessionID, raw)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", apperr.ErrInvalidSessionID, raw)
	}
	if id.Version() != 4 {
		return uuid.Nil, fmt.Errorf("%w: %q is version %d", apperr.ErrInvalidSessionID, raw, id.Version())
	}
	return id, nil
}

// SessionService はセッション履歴のビジネスロジックを提供する
type SessionService struct {
	repo   Repository
	logger *slog.Logger
}

type SessionServiceOption func(*SessionService)

// WithSessionLogger は SessionService にロガーを設定する
func WithSessionLogger(logger *slog.Logger) SessionServiceOption {
	return func(s *SessionService) {
		s.logger = logger
	}
}

// NewSessionService は新しいSessionServiceを作成する
func NewSessionService(repo Repository, opts ...SessionServiceOption) *SessionService {
	svc := &SessionService{
		repo:   repo,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Append はターンを追記する
func (s *SessionService) Append(ctx context.Context, sessionID uuid.UUID, query, answer string) (*Turn, error) {
	turn, err := s.repo.Append(ctx, sessionID, query, answer)
	if err != nil {
		return nil, fmt.Errorf("failed to append turn: %w", err)
	}
	return turn, nil
}

// List はセッションのターンを挿入順で返す
func (s *SessionService) List(ctx context.Context, sessionID uuid.UUID) ([]*Turn, error) {
	turns, err := s.repo.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	if turns == nil {
		turns = []*Turn{}
	}
	return turns, nil
}

// LoadMemory は履歴を読み込み会話メモリを再構築する
func (s *SessionService) LoadMemory(ctx context.Context, sessionID uuid.UUID) (*Memory, error) {
	turns, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("session memory loaded",
		"sessionID", sessionID.String(),
		"turns", len(turns),
	)

	return NewMemory(turns), nil
}

// Delete はセッションの全ターンを削除する。
// 該当行が0件の場合は ErrSessionNotFound を返す
func (s *SessionService) Delete(ctx context.Context, sessionID uuid.UUID) (*DeleteResult, error) {
	deleted, err := s.repo.Delete(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}
	if deleted == 0 {
		return nil, fmt.Errorf("%w: session id %s not found", apperr.ErrSessionNotFound, sessionID)
	}

	s.logger.Info("session deleted",
		"sessionID", sessionID.String(),
		"deleted", deleted,
	)

	return &DeleteResult{SessionID: sessionID, Deleted: deleted}, nil
}
