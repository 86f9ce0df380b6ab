package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ ContentStore = (*Memory)(nil)
	_ ContentStore = (*Redis)(nil)
)

// runContract exercises the behavior every ContentStore shares.
func runContract(t *testing.T, s ContentStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "a", "<p>one</p>"))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p>", got)

	require.NoError(t, s.Put(ctx, "a", "<p>two</p>"))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "<p>two</p>", got, "Put should overwrite")

	require.NoError(t, s.Put(ctx, "b", ""))
	got, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, got, "empty content is stored, not treated as missing")

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "never-stored"))
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

func TestMemory_Contract(t *testing.T) {
	t.Parallel()
	runContract(t, NewMemory(0))
}

func TestMemory_TTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "s", "x"))

	now = now.Add(59 * time.Second)
	_, err := m.Get(ctx, "s")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len(), "expired entry should be dropped")
}

func TestMemory_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory(0)
	assert.ErrorIs(t, m.Put(ctx, "s", "x"), context.Canceled)
	_, err := m.Get(ctx, "s")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Delete(ctx, "s"), context.Canceled)
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_Contract(t *testing.T) {
	t.Parallel()
	_, client := newMiniredis(t)
	runContract(t, NewRedisFromClient(client))
}

func TestRedis_KeyPrefix(t *testing.T) {
	t.Parallel()

	mr, client := newMiniredis(t)
	s := NewRedisFromClient(client, WithPrefix("test:"))

	require.NoError(t, s.Put(context.Background(), "s1", "x"))
	assert.True(t, mr.Exists("test:s1"))
	assert.False(t, mr.Exists(defaultPrefix+"s1"))
}

func TestRedis_TTL(t *testing.T) {
	t.Parallel()

	mr, client := newMiniredis(t)
	s := NewRedisFromClient(client, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "s", "x"))
	assert.Equal(t, time.Minute, mr.TTL(defaultPrefix+"s"))

	mr.FastForward(time.Minute)
	_, err := s.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_Ping(t *testing.T) {
	t.Parallel()

	mr, client := newMiniredis(t)
	s := NewRedisFromClient(client)
	assert.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
