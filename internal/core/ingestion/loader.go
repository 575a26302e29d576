package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"github.com/jinford/chat-rag/internal/core/apperr"
)

// DefaultExtensions は取り込み対象の既定の拡張子
var DefaultExtensions = []string{".txt"}

// Loader はディレクトリ配下のテキストファイルを読み込む
type Loader struct {
	extensions []string
	logger     *slog.Logger
}

// LoaderOption は Loader のオプション設定
type LoaderOption func(*Loader)

// WithExtensions は取り込み対象の拡張子を設定する
func WithExtensions(exts ...string) LoaderOption {
	return func(l *Loader) {
		var normalized []string
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			normalized = append(normalized, ext)
		}
		if len(normalized) > 0 {
			l.extensions = normalized
		}
	}
}

// WithLoaderLogger はロガーを設定する
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader は新しい Loader を作成する
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		extensions: DefaultExtensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadResult は読み込み結果
type LoadResult struct {
	Documents []*Document
	Skipped   int
}

// Load は root 配下を再帰的に走査して対象拡張子のファイルを読み込む。
// root がファイルの場合はそのファイルだけを読み込む
func (l *Loader) Load(ctx context.Context, root string) (*LoadResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrSourcePathNotFound, root)
		}
		return nil, fmt.Errorf("failed to stat source path: %w", err)
	}

	result := &LoadResult{}

	if !info.IsDir() {
		doc, ok, err := l.loadFile(root)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Documents = append(result.Documents, doc)
		} else {
			result.Skipped++
		}
		return result, nil
	}

	filter, err := NewIgnoreFilter(root)
	if err != nil {
		return nil, fmt.Errorf("failed to create ignore filter: %w", err)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if filter.ShouldIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.matchesExtension(path) {
			return nil
		}

		doc, ok, err := l.loadFile(path)
		if err != nil {
			return err
		}
		if !ok {
			result.Skipped++
			return nil
		}
		result.Documents = append(result.Documents, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source path: %w", err)
	}

	l.logger.Debug("documents loaded",
		"root", root,
		"documents", len(result.Documents),
		"skipped", result.Skipped,
	)
	return result, nil
}

func (l *Loader) matchesExtension(path string) bool {
	return slices.Contains(l.extensions, strings.ToLower(filepath.Ext(path)))
}

// loadFile はファイルを読み込む。バイナリや空の文書は ok=false を返す
func (l *Loader) loadFile(path string) (*Document, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if enry.IsBinary(content) {
		l.logger.Warn("skipping binary file", "path", path)
		return nil, false, nil
	}

	text := CleanText(string(content))
	if text == "" {
		return nil, false, nil
	}

	return &Document{Source: path, Content: text}, true, nil
}

// CleanText は各行の前後の空白を除去し、連続する空白を1つの空白にまとめる
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
