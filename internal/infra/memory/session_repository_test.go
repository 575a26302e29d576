package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_ConcurrentAppendKeepsOrder(t *testing.T) {
	const writers, perWriter = 8, 20
	ctx := context.Background()
	r := NewSessionRepository()
	id := uuid.New()

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				_, err := r.Append(ctx, id, fmt.Sprintf("w%d-q%d", w, i), "a")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	turns, err := r.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, writers*perWriter)

	next := make(map[int]int)
	for i, turn := range turns {
		if i > 0 {
			assert.Less(t, turns[i-1].ID, turn.ID)
		}
		var w, q int
		_, err := fmt.Sscanf(turn.Query, "w%d-q%d", &w, &q)
		require.NoError(t, err)
		assert.Equal(t, next[w], q, "writer %d turns out of order", w)
		next[w] = q + 1
	}
}

func TestSessionRepository_AppendListDelete(t *testing.T) {
	ctx := context.Background()
	r := NewSessionRepository()
	id := uuid.New()

	_, err := r.Append(ctx, id, "q1", "a1")
	require.NoError(t, err)
	_, err = r.Append(ctx, id, "q2", "a2")
	require.NoError(t, err)

	turns, err := r.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "q1", turns[0].Query)
	assert.Equal(t, "a2", turns[1].Answer)

	n, err := r.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	turns, err = r.List(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
