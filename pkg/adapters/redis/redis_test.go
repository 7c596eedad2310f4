package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/conductor/pkg/adapters/redis"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunRunStoreContract(t, redis.NewFromClient(client))
}

func TestStore_RoundTripKeepsTrace(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	run := domain.NewRun("r1", domain.ModeDelegation, nil)
	run.Goal = "find otters"
	run.Status = domain.StatusAwaitingInput
	run.Answer = "soon"
	run.Record(domain.TraceRecord{Kind: domain.TraceDecision, Name: "round 1", Output: "delegate(a, \"t\")"})
	require.NoError(t, store.Save(ctx, run))

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeDelegation, loaded.Mode)
	assert.Equal(t, domain.StatusAwaitingInput, loaded.Status)
	assert.Equal(t, "find otters", loaded.Goal)
	assert.Equal(t, "soon", loaded.Answer)
	require.Len(t, loaded.Trace, 1)
	assert.Equal(t, 1, loaded.Trace[0].Seq)
	assert.Equal(t, domain.TraceDecision, loaded.Trace[0].Kind)
}

func TestStore_LoadKeepsIntegerCounters(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	run := domain.NewRun("r1", domain.ModeGraph, domain.ContextFrom(map[string]any{"greeted": 1, "score": 7.5}))
	require.NoError(t, store.Save(ctx, run))

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	n, ok := loaded.Context.Value("greeted").(int)
	require.True(t, ok, "got %T", loaded.Context.Value("greeted"))
	assert.Equal(t, 1, n)
	assert.Equal(t, 7.5, loaded.Context.Value("score"))
}

func TestStore_TTLExpiration(t *testing.T) {
	mr, client := setup(t)
	now := time.Now()
	store := redis.NewFromClient(client,
		redis.WithTTL(time.Second),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRun("r-ttl", domain.ModeGraph, nil)))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "r-ttl")

	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, err = store.Load(ctx, "r-ttl")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRun("my-run", domain.ModeGraph, nil)))
	assert.True(t, mr.Exists("custom:app:my-run"))
	assert.True(t, mr.Exists("custom:app:index"))

	require.NoError(t, store.Delete(ctx, "my-run"))
	assert.False(t, mr.Exists("custom:app:my-run"))
}

func TestLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:resource1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:resource1"))
}

func TestLocker_Contention(t *testing.T) {
	_, client := setup(t)
	first := redis.NewLocker(client, "test:")
	second := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := first.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = second.Lock(short, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))

	unlock2, err := second.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_ExpiredLockIsNotStolen(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, unlock1(ctx), redis.ErrLockLost)
	assert.True(t, mr.Exists("test:lock:k"), "the second holder keeps its lock")
	require.NoError(t, unlock2(ctx))
}

func TestSessionManager_WithRedis(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	mgr := session.NewManager(store, session.WithLocker(redis.NewLocker(client, "")))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRun("r1", domain.ModeGraph, nil)))

	updated, err := mgr.Update(ctx, "r1", func(ctx context.Context, run *domain.Run) (*domain.Run, error) {
		run.Context.Set("approved", true)
		return run, nil
	})
	require.NoError(t, err)
	assert.Equal(t, true, updated.Context.Value("approved"))

	stored, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, true, stored.Context.Value("approved"))
}
