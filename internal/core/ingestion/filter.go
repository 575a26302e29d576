package ingestion

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ignoreFileNames はソースルート直下から読み込む除外ファイル
var ignoreFileNames = []string{".gitignore", ".ragignore"}

// IgnoreFilter は .gitignore と .ragignore のパターンマッチングを提供する
type IgnoreFilter struct {
	patterns *gitignore.GitIgnore
}

// NewIgnoreFilter は root 配下の除外ファイルとデフォルトパターンから IgnoreFilter を作成する
func NewIgnoreFilter(root string) (*IgnoreFilter, error) {
	var patterns []string

	for _, name := range ignoreFileNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		lines, err := readIgnoreFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		patterns = append(patterns, lines...)
	}

	patterns = append(patterns, defaultIgnorePatterns...)

	return &IgnoreFilter{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// ShouldIgnore は root からの相対パスが除外対象かどうかを判定する
func (f *IgnoreFilter) ShouldIgnore(relPath string) bool {
	if f == nil || f.patterns == nil {
		return false
	}
	return f.patterns.MatchesPath(filepath.ToSlash(relPath))
}

func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

var defaultIgnorePatterns = []string{
	// Git関連
	".git",

	// 依存関係・ビルド成果物
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",

	// IDE/エディタ関連
	".vscode",
	".idea",
	".DS_Store",
	"*.swp",
	"*~",

	// 一時ファイル・キャッシュ
	"*.tmp",
	"tmp",
	".cache",
	"__pycache__",

	// 環境変数・機密情報
	".env",
	".env.*",
	"*.pem",
	"*.key",
}
