package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Locker serializes critical sections across all server instances that share
// a database. Keys are arbitrary strings; a key is held by at most one caller
// at a time.
type Locker interface {
	// TryAcquire attempts to take the lock for key, waiting up to wait before
	// giving up. It returns (false, nil) when the lock could not be acquired
	// in time; errors are reserved for infrastructure failures.
	TryAcquire(ctx context.Context, key string, wait time.Duration) (bool, error)
	// Release frees a previously acquired key. Releasing a key that is not
	// held is a no-op.
	Release(ctx context.Context, key string) error
}

const lockPollInterval = 100 * time.Millisecond

// AdvisoryLocker implements Locker on top of PostgreSQL session-scoped
// advisory locks. Each held key pins a dedicated pool connection; if the
// process dies, the session closes and the database frees the lock, so no
// stale lock can outlive its holder.
type AdvisoryLocker struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	held map[string]*pgxpool.Conn
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{
		pool: pool,
		held: make(map[string]*pgxpool.Conn),
	}
}

func (l *AdvisoryLocker) TryAcquire(ctx context.Context, key string, wait time.Duration) (bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock connection: %w", err)
	}

	deadline := time.Now().Add(wait)
	for {
		var got bool
		err := conn.QueryRow(ctx,
			`SELECT pg_try_advisory_lock(hashtext($1)::bigint)`, key).Scan(&got)
		if err != nil {
			conn.Release()
			return false, fmt.Errorf("try advisory lock %q: %w", key, err)
		}
		if got {
			l.mu.Lock()
			if _, dup := l.held[key]; dup {
				// Same process already holds this key on another connection.
				// Advisory locks are reentrant per session, but a second
				// holder here would leak a connection on release.
				l.mu.Unlock()
				_, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1)::bigint)`, key)
				conn.Release()
				return false, fmt.Errorf("lock %q already held by this process", key)
			}
			l.held[key] = conn
			l.mu.Unlock()
			return true, nil
		}
		if time.Now().After(deadline) {
			conn.Release()
			return false, nil
		}
		select {
		case <-ctx.Done():
			conn.Release()
			return false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *AdvisoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	_, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1)::bigint)`, key)
	conn.Release()
	if err != nil {
		return fmt.Errorf("release advisory lock %q: %w", key, err)
	}
	return nil
}

// LeaseLocker implements Locker with a plain lock table for deployments where
// advisory locks are unavailable (e.g. behind poolers in transaction mode).
// Rows carry an expiry so a crashed holder's lease lapses on its own.
type LeaseLocker struct {
	pool   *pgxpool.Pool
	holder string
	lease  time.Duration
}

// NewLeaseLocker creates a lease-based locker. lease bounds how long a
// crashed holder can block other callers.
func NewLeaseLocker(pool *pgxpool.Pool, lease time.Duration) *LeaseLocker {
	return &LeaseLocker{
		pool:   pool,
		holder: uuid.NewString(),
		lease:  lease,
	}
}

func (l *LeaseLocker) TryAcquire(ctx context.Context, key string, wait time.Duration) (bool, error) {
	deadline := time.Now().Add(wait)
	for {
		tag, err := l.pool.Exec(ctx, `
			INSERT INTO booking_locks (lock_key, holder, expires_at)
			VALUES ($1, $2, NOW() + $3::interval)
			ON CONFLICT (lock_key) DO UPDATE
			SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
			WHERE booking_locks.expires_at <= NOW()`,
			key, l.holder, l.lease.String())
		if err != nil {
			return false, fmt.Errorf("claim lease %q: %w", key, err)
		}
		if tag.RowsAffected() == 1 {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *LeaseLocker) Release(ctx context.Context, key string) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM booking_locks WHERE lock_key = $1 AND holder = $2`,
		key, l.holder)
	if err != nil {
		return fmt.Errorf("release lease %q: %w", key, err)
	}
	return nil
}

// MemoryLocker is an in-process Locker for tests and single-node development.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, key string, wait time.Duration) (bool, error) {
	deadline := time.Now().Add(wait)
	for {
		l.mu.Lock()
		if !l.held[key] {
			l.held[key] = true
			l.mu.Unlock()
			return true, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (l *MemoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}
