package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	calls int
	reply string
	err   error
}

func (s *stubClient) Generate(_ context.Context, _ string, _ float64) (string, error) {
	s.calls++
	return s.reply, s.err
}

// unreachableRedis 指向一个没有监听的端口，所有命令都会快速失败。
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewCachedClientPassThrough(t *testing.T) {
	next := &stubClient{reply: "ok"}
	assert.Same(t, Client(next), NewCachedClient(next, nil, time.Hour))

	rdb := unreachableRedis()
	defer rdb.Close()
	assert.Same(t, Client(next), NewCachedClient(next, rdb, 0))
}

func TestCachedClientRedisDown(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()
	next := &stubClient{reply: `{"field": "Thuế"}`}
	c := NewCachedClient(next, rdb, time.Minute)

	out, err := c.Generate(context.Background(), "prompt", 0)
	require.NoError(t, err)
	assert.Equal(t, `{"field": "Thuế"}`, out)
	assert.Equal(t, 1, next.calls)
}

func TestCachedClientSkipsNonDeterministic(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()
	next := &stubClient{reply: "answer"}
	c := NewCachedClient(next, rdb, time.Minute)

	_, err := c.Generate(context.Background(), "prompt", 0.3)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "prompt", 0.3)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedClientPropagatesError(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()
	boom := errors.New("rate limited")
	c := NewCachedClient(&stubClient{err: boom}, rdb, time.Minute)

	_, err := c.Generate(context.Background(), "prompt", 0)
	require.ErrorIs(t, err, boom)
}

func TestCacheKeyStable(t *testing.T) {
	assert.Equal(t, cacheKey("a"), cacheKey("a"))
	assert.NotEqual(t, cacheKey("a"), cacheKey("b"))
	assert.Contains(t, cacheKey("a"), cacheKeyPrefix)
}
