package ingestion

import (
	"fmt"
	"sync"

	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultChunkSize はチャンクあたりのトークン数
	DefaultChunkSize = 80
	// DefaultChunkOverlap は隣接チャンク間で重複させるトークン数
	DefaultChunkOverlap = 20
	// DefaultEncoding はトークナイザのエンコーディング
	DefaultEncoding = "cl100k_base"
)

// Tokenizer はテキストとトークン列を相互変換する
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TiktokenTokenizer は tiktoken によるトークナイザ。
// エンコーディングは初回使用時に一度だけ読み込む
type TiktokenTokenizer struct {
	name string

	once     sync.Once
	encoding *tiktoken.Tiktoken
	err      error
}

// NewTiktokenTokenizer は指定エンコーディングのトークナイザを作成する
func NewTiktokenTokenizer(encoding string) *TiktokenTokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenTokenizer{name: encoding}
}

// Load はエンコーディングを読み込む
func (t *TiktokenTokenizer) Load() error {
	t.once.Do(func() {
		t.encoding, t.err = tiktoken.GetEncoding(t.name)
		if t.err != nil {
			t.err = fmt.Errorf("failed to get tiktoken encoding: %w", t.err)
		}
	})
	return t.err
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	if t.Load() != nil {
		return nil
	}
	return t.encoding.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	if t.Load() != nil {
		return ""
	}
	return t.encoding.Decode(tokens)
}

// Splitter はトークン数の固定窓で文書をチャンクに分割する
type Splitter struct {
	tokenizer Tokenizer
	size      int
	overlap   int
}

// NewSplitter は新しい Splitter を作成する
func NewSplitter(tokenizer Tokenizer, size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive: %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d): %d", size, overlap)
	}
	return &Splitter{tokenizer: tokenizer, size: size, overlap: overlap}, nil
}

// Split は文書をチャンクに分割する。各チャンクは文書の Source を引き継ぐ
func (s *Splitter) Split(doc *Document) ([]vectorindex.Chunk, error) {
	if loader, ok := s.tokenizer.(interface{ Load() error }); ok {
		if err := loader.Load(); err != nil {
			return nil, err
		}
	}

	tokens := s.tokenizer.Encode(doc.Content)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := s.size - s.overlap
	var chunks []vectorindex.Chunk
	for start := 0; start < len(tokens); start += step {
		end := min(start+s.size, len(tokens))
		chunks = append(chunks, vectorindex.Chunk{
			Text:   s.tokenizer.Decode(tokens[start:end]),
			Source: doc.Source,
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}
