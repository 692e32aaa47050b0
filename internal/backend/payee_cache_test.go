package backend

import (
	stdcontext "context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	names     int
	countries int
	err       error
}

func (s *countingSource) PayeeName(_ stdcontext.Context, id string) (string, error) {
	s.names++
	if s.err != nil {
		return "", s.err
	}
	return "Shop " + id, nil
}

func (s *countingSource) PayeeCountry(_ stdcontext.Context, _ string) (string, error) {
	s.countries++
	if s.err != nil {
		return "", s.err
	}
	return "AT", nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestPayeeCache_ReadThrough(t *testing.T) {
	s, rdb := newRedis(t)
	src := &countingSource{}
	cache := NewPayeeCache(rdb, src, "dev", time.Minute, nil)
	ctx := stdcontext.Background()

	for i := 0; i < 3; i++ {
		name, err := cache.PayeeName(ctx, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, "Shop pay_1", name)
	}
	assert.Equal(t, 1, src.names)

	country, err := cache.PayeeCountry(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "AT", country)

	assert.True(t, s.Exists("checkout:payee:dev:pay_1:name"))
	ttl := s.TTL("checkout:payee:dev:pay_1:country")
	assert.Equal(t, time.Minute, ttl)

	s.FastForward(2 * time.Minute)
	_, err = cache.PayeeName(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.names)
}

func TestPayeeCache_SourceErrorNotCached(t *testing.T) {
	s, rdb := newRedis(t)
	src := &countingSource{err: errors.New("E404141")}
	cache := NewPayeeCache(rdb, src, "dev", time.Minute, nil)

	_, err := cache.PayeeName(stdcontext.Background(), "pay_2")
	require.Error(t, err)
	assert.False(t, s.Exists("checkout:payee:dev:pay_2:name"))
}

func TestPayeeCache_RedisDownFallsThrough(t *testing.T) {
	s, rdb := newRedis(t)
	src := &countingSource{}
	cache := NewPayeeCache(rdb, src, "dev", time.Minute, nil)
	s.Close()

	name, err := cache.PayeeName(stdcontext.Background(), "pay_3")
	require.NoError(t, err)
	assert.Equal(t, "Shop pay_3", name)
}

func TestPool_ReusesClientsPerBaseURL(t *testing.T) {
	_, rdb := newRedis(t)
	pool := NewPool(rdb, time.Minute, nil)
	a := pool.For("https://dev.example")
	b := pool.For("https://dev.example")
	c := pool.For("https://live.example")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.NotNil(t, a.payees)

	plain := NewPool(nil, 0, nil).For("https://dev.example")
	assert.Nil(t, plain.payees)
}
