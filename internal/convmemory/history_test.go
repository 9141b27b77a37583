package convmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/config"
	"docchat/internal/models"
)

func newTestRedisHistory(t *testing.T, ttlSeconds int) (*RedisHistory, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	h := NewRedisHistory(&config.RedisConfig{Addr: mr.Addr(), SessionTTL: ttlSeconds})
	t.Cleanup(func() { h.Close() })
	return h, mr
}

func turn(q, a string) models.Turn {
	return models.Turn{Question: q, Answer: a, At: time.Now()}
}

func TestRedisHistoryAppendAndTurns(t *testing.T) {
	h, _ := newTestRedisHistory(t, 0)
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, "s1", turn("What is X?", "X is Y.")))
	require.NoError(t, h.Append(ctx, "s1", turn("What about its size?", "Quite small.")))

	turns, err := h.Turns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "What is X?", turns[0].Question)
	assert.Equal(t, "X is Y.", turns[0].Answer)
	assert.Equal(t, "What about its size?", turns[1].Question)
}

func TestRedisHistoryMonotonicity(t *testing.T) {
	h, _ := newTestRedisHistory(t, 0)
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		require.NoError(t, h.Append(ctx, "s1", turn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))))
	}

	turns, err := h.Turns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, n)
	for i, tn := range turns {
		assert.Equal(t, fmt.Sprintf("q%d", i), tn.Question)
	}
}

func TestRedisHistoryUnknownSessionIsEmpty(t *testing.T) {
	h, _ := newTestRedisHistory(t, 0)

	turns, err := h.Turns(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRedisHistorySessionsAreIsolated(t *testing.T) {
	h, _ := newTestRedisHistory(t, 0)
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, "s1", turn("q1", "a1")))
	require.NoError(t, h.Append(ctx, "s2", turn("q2", "a2")))

	turns, err := h.Turns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "q1", turns[0].Question)
}

func TestRedisHistoryTTLApplied(t *testing.T) {
	h, mr := newTestRedisHistory(t, 60)
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, "s1", turn("q", "a")))
	assert.Greater(t, mr.TTL(sessionKey("s1")), time.Duration(0))

	// Expiry evicts the whole session.
	mr.FastForward(2 * time.Minute)
	turns, err := h.Turns(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRedisHistoryConcurrentAppendsAllLand(t *testing.T) {
	h, _ := newTestRedisHistory(t, 0)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.Append(ctx, "s1", turn(fmt.Sprintf("q%d", i), "a"))
		}(i)
	}
	wg.Wait()

	turns, err := h.Turns(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, n, "no append may clobber another")
}

func TestMemoryHistoryParity(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()

	turns, err := h.Turns(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	const n = 10
	for i := 0; i < n; i++ {
		require.NoError(t, h.Append(ctx, "s1", turn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))))
	}

	turns, err = h.Turns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, n)
	for i, tn := range turns {
		assert.Equal(t, fmt.Sprintf("q%d", i), tn.Question)
	}
}

func TestMemoryHistoryConcurrentAppends(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Append(ctx, "s1", turn("q", "a"))
		}()
	}
	wg.Wait()

	turns, err := h.Turns(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, n)
}
