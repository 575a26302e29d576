package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer は空白区切りの単語を1トークンとして扱うテスト用トークナイザ
type wordTokenizer struct {
	vocab []string
	index map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{index: make(map[string]int)}
}

func (w *wordTokenizer) Encode(text string) []int {
	var ids []int
	for _, word := range strings.Fields(text) {
		id, ok := w.index[word]
		if !ok {
			id = len(w.vocab)
			w.vocab = append(w.vocab, word)
			w.index[word] = id
		}
		ids = append(ids, id)
	}
	return ids
}

func (w *wordTokenizer) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, id := range tokens {
		words[i] = w.vocab[id]
	}
	return strings.Join(words, " ")
}

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "w" + strings.Repeat("x", i%3) + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	return strings.Join(words, " ")
}

func TestSplitter_WindowsWithOverlap(t *testing.T) {
	tok := newWordTokenizer()
	s, err := NewSplitter(tok, 4, 1)
	require.NoError(t, err)

	chunks, err := s.Split(&Document{Source: "a.txt", Content: "one two three four five six seven"})
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "one two three four", chunks[0].Text)
	assert.Equal(t, "four five six seven", chunks[1].Text)
	for _, c := range chunks {
		assert.Equal(t, "a.txt", c.Source)
	}
}

func TestSplitter_DefaultSizes(t *testing.T) {
	tok := newWordTokenizer()
	s, err := NewSplitter(tok, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	chunks, err := s.Split(&Document{Source: "long.txt", Content: numberedWords(200)})
	require.NoError(t, err)

	// 0-80, 60-140, 120-200
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(c.Text)), DefaultChunkSize)
	}
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	assert.Equal(t, first[60:], second[:20])
}

func TestSplitter_ShortAndEmptyDocuments(t *testing.T) {
	s, err := NewSplitter(newWordTokenizer(), 80, 20)
	require.NoError(t, err)

	chunks, err := s.Split(&Document{Source: "short.txt", Content: "hello world"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)

	chunks, err = s.Split(&Document{Source: "empty.txt", Content: ""})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNewSplitter_InvalidSizes(t *testing.T) {
	_, err := NewSplitter(newWordTokenizer(), 0, 0)
	require.Error(t, err)

	_, err = NewSplitter(newWordTokenizer(), 10, 10)
	require.Error(t, err)

	_, err = NewSplitter(newWordTokenizer(), 10, -1)
	require.Error(t, err)
}

func TestCleanText(t *testing.T) {
	in := "  first line  \n\n\n\tsecond   line\n   \nthird\r\n"
	assert.Equal(t, "first line second line third", CleanText(in))
	assert.Equal(t, "", CleanText(" \n\t "))
}
