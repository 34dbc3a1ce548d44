package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/matchday/sportsync/internal/core"
)

// LockManager provides cross-process mutual exclusion via PostgreSQL
// session-scoped advisory locks. Each WithLock call claims a dedicated
// connection so the lock's session lives exactly as long as the guarded work.
type LockManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLockManager creates a LockManager over the given pool.
func NewLockManager(db *sql.DB, logger *slog.Logger) *LockManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &LockManager{
		db:     db,
		logger: logger.With("component", "lock_manager"),
	}
}

// fnvHash computes FNV-1a 64-bit hash of the given string for use as advisory lock key.
func fnvHash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	// Advisory locks accept BIGINT; constrain the unsigned hash into int64 range before casting.
	u := h.Sum64()
	if u > uint64(math.MaxInt64) {
		u %= uint64(math.MaxInt64)
	}
	return int64(u) // #nosec G115 -- value is explicitly bounded to <= MaxInt64 before casting to int64.
}

// WithLock attempts a non-blocking exclusive claim on hash(key) and, if
// acquired, invokes fn. A second concurrent caller for the same key receives
// ErrLockNotAcquired immediately; it never queues.
//
// The lock and its connection are released exactly once, after fn settles,
// on every path: success, failure, caller timeout, and caller cancellation.
// On timeout or cancellation the caller's wait ends early while fn finishes
// (and releases the lock) in the background; fn observes the cancellation
// through its context and should abort cooperatively.
func (m *LockManager) WithLock(
	ctx context.Context,
	key string,
	opts core.LockOptions,
	fn func(context.Context) error,
) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get lock connection: %w", err)
	}

	lockKey := fnvHash(key)

	var locked bool
	if scanErr := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey).Scan(&locked); scanErr != nil {
		m.closeConn(conn, key)
		return fmt.Errorf("acquire advisory lock %q: %w", key, scanErr)
	}
	if !locked {
		m.closeConn(conn, key)
		return fmt.Errorf("lock %q: %w", key, ErrLockNotAcquired)
	}

	fnCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() {
		defer func() {
			// Release on the same session that acquired, regardless of how
			// the caller's wait ended. The detached context keeps the unlock
			// alive past caller cancellation.
			m.release(context.WithoutCancel(ctx), conn, key, lockKey)
			cancel()
		}()
		done <- fn(fnCtx)
	}()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case fnErr := <-done:
		return fnErr
	case <-timeout:
		cancel()
		return fmt.Errorf("lock %q after %s: %w", key, opts.Timeout, ErrLockTimeout)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (m *LockManager) release(ctx context.Context, conn *sql.Conn, key string, lockKey int64) {
	releaseCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var released bool
	if err := conn.QueryRowContext(releaseCtx, "SELECT pg_advisory_unlock($1)", lockKey).Scan(&released); err != nil {
		// Conn.Close returns the connection to the pool, which would leak the
		// session lock. Discard the underlying connection instead so the
		// session ends and the lock drops with it.
		m.logger.Error("advisory unlock failed, discarding connection", "key", key, "error", err)
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		m.closeConn(conn, key)
		return
	}
	if !released {
		m.logger.Warn("advisory unlock reported no lock held", "key", key)
	}
	m.closeConn(conn, key)
}

func (m *LockManager) closeConn(conn *sql.Conn, key string) {
	if err := conn.Close(); err != nil {
		m.logger.Warn("close lock connection failed", "key", key, "error", err)
	}
}
