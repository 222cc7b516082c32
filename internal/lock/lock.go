package lock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Release gives up a held lock.
type Release func(ctx context.Context) error

// Locker hands out short-lived named locks. TryLock never blocks waiting
// for a holder; ok is false when someone else owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release Release, ok bool, err error)
}

// New picks the strongest backend available: Redis, then Postgres
// advisory locks, then an in-process map.
func New(rdb *redis.Client, db *sql.DB) Locker {
	switch {
	case rdb != nil:
		return NewRedisLocker(rdb)
	case db != nil:
		return NewPGLocker(db)
	default:
		return NewLocalLocker()
	}
}

// =============================================================================
// Redis
// =============================================================================

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	k := "lock:" + key
	token := randomToken()

	ok, err := l.client.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Wrapf(err, "acquire lock %s", k)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{k}, token).Err()
	}, true, nil
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// =============================================================================
// Postgres advisory locks
// =============================================================================

// PGLocker pins a pool connection for the lifetime of each lock since
// advisory locks belong to the session that took them. ttl is ignored;
// the lock goes away with the connection.
type PGLocker struct {
	db *sql.DB
}

func NewPGLocker(db *sql.DB) *PGLocker {
	return &PGLocker{db: db}
}

func (l *PGLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "pin connection for advisory lock")
	}

	id := advisoryID(key)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, errors.Wrapf(err, "advisory lock %s", key)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		defer conn.Close()
		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", id)
		return errors.Wrapf(err, "advisory unlock %s", key)
	}, true, nil
}

func advisoryID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// =============================================================================
// In-process
// =============================================================================

type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.held[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return nil, false, nil
	}
	// zero expiry means held until released
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	l.held[key] = exp

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(exp) {
			delete(l.held, key)
		}
		return nil
	}, true, nil
}
