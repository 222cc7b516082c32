package lock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisLocker_Exclusive(t *testing.T) {
	_, rdb := newRedis(t)
	l := NewRedisLocker(rdb)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "queue:tenant-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "queue:tenant-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))

	_, ok, err = l.TryLock(ctx, "queue:tenant-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_ExpiresAndStaleReleaseIsHarmless(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedisLocker(rdb)
	ctx := context.Background()

	staleRelease, ok, err := l.TryLock(ctx, "job:reconcile", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.TryLock(ctx, "job:reconcile", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// the first holder's release must not drop the second holder's lock
	require.NoError(t, staleRelease(ctx))
	assert.True(t, mr.Exists("lock:job:reconcile"))
}

func TestPGLocker_AcquireAndRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := advisoryID("queue:tenant-1")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	l := NewPGLocker(db)
	release, ok, err := l.TryLock(context.Background(), "queue:tenant-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGLocker_Busy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	_, ok, err := NewPGLocker(db).TryLock(context.Background(), "queue:tenant-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	release, ok, _ := l.TryLock(ctx, "k", time.Minute)
	require.True(t, ok)
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok, "expired lock is reclaimable")

	// releasing the expired holder leaves the new holder in place
	require.NoError(t, release(ctx))
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)
}

func TestNew_PicksBackend(t *testing.T) {
	_, rdb := newRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.IsType(t, &RedisLocker{}, New(rdb, db))
	assert.IsType(t, &PGLocker{}, New(nil, db))
	assert.IsType(t, &LocalLocker{}, New(nil, nil))
}
