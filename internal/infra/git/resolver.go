package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jinford/chat-rag/internal/core/ingestion"
)

// Resolver はGitリポジトリのURLを一時ディレクトリへの浅いクローンに解決する ingestion.SourceResolver 実装
type Resolver struct {
	client  *Client
	baseDir string
	depth   int
	logger  *slog.Logger
}

// NewResolver は新しい Resolver を作成する。baseDir が空の場合はOSの一時ディレクトリを使う
func NewResolver(client *Client, baseDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, baseDir: baseDir, depth: 1, logger: logger}
}

// CanResolve はリモートのGit URLかどうかを返す
func (r *Resolver) CanResolve(location string) bool {
	return IsRemoteURL(location)
}

// Resolve はリポジトリを浅くクローンし、そのパスと削除用の関数を返す
func (r *Resolver) Resolve(ctx context.Context, location string) (string, func(), error) {
	if r.baseDir != "" {
		if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create clone dir: %w", err)
		}
	}

	dir, err := os.MkdirTemp(r.baseDir, "chat-rag-src-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("failed to remove clone dir", "dir", dir, "error", err)
		}
	}

	if err := r.client.Clone(ctx, location, dir, CloneOptions{Depth: r.depth}); err != nil {
		cleanup()
		return "", nil, err
	}

	commit, err := r.client.HeadCommit(dir)
	if err != nil {
		r.logger.Warn("failed to read HEAD of cloned repository", "url", location, "error", err)
	}
	name, _ := r.client.URLToDirectoryName(location)
	r.logger.Info("repository cloned", "url", location, "name", name, "commit", commit)

	return dir, cleanup, nil
}

// IsRemoteURL はGitのリモートURL（https, ssh, scp形式）かどうかを判定する
func IsRemoteURL(location string) bool {
	switch {
	case strings.HasPrefix(location, "https://"),
		strings.HasPrefix(location, "http://"),
		strings.HasPrefix(location, "ssh://"),
		strings.HasPrefix(location, "git://"):
		return true
	case strings.HasPrefix(location, "git@") && strings.Contains(location, ":"):
		return true
	default:
		return false
	}
}

var _ ingestion.SourceResolver = (*Resolver)(nil)
