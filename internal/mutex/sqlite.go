// ABOUTME: SQLite-backed lease implementation of the Locker interface
// ABOUTME: A fencing token per acquisition keeps stale holders from touching newer leases

package mutex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SQLiteLocker implements Locker on a shared SQLite database. Because
// every bot process opens the same database file, the leases table gives
// mutual exclusion across processes, not just goroutines.
type SQLiteLocker struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteLocker creates a locker on an already-open database and
// ensures the leases table exists.
func NewSQLiteLocker(db *sql.DB, logger *slog.Logger) (*SQLiteLocker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &SQLiteLocker{
		db:     db,
		logger: logger.With("component", "mutex"),
		now:    time.Now,
	}

	schema := `
		CREATE TABLE IF NOT EXISTS locks (
			key TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating locks schema: %w", err)
	}
	return l, nil
}

// Lock acquires the key for ttl. An existing unexpired lease by another
// token causes ErrLock; an expired lease is taken over atomically.
func (l *SQLiteLocker) Lock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.New().String()
	now := l.now().UnixMilli()
	expires := now + ttl.Milliseconds()

	// Message-claim leases are acquired once per inbound message and
	// never unlocked, so expired rows have to be reaped here or the
	// table grows with every message handled.
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM locks WHERE expires_at <= ?`, now); err != nil {
		l.logger.Warn("failed to purge expired locks", "error", err)
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO locks (key, token, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?`,
		key, token, expires, now)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
	}
	if n == 0 {
		return nil, ErrLock
	}

	l.logger.Debug("lock acquired", "key", key, "ttl", ttl)
	return &sqliteLock{locker: l, key: key, token: token}, nil
}

type sqliteLock struct {
	locker *SQLiteLocker
	key    string
	token  string
}

func (lk *sqliteLock) Key() string { return lk.key }

// Extend pushes the expiry forward. Fails with ErrLock when the lease
// expired and may belong to someone else now.
func (lk *sqliteLock) Extend(ctx context.Context, ttl time.Duration) error {
	now := lk.locker.now().UnixMilli()
	expires := now + ttl.Milliseconds()

	res, err := lk.locker.db.ExecContext(ctx, `
		UPDATE locks SET expires_at = ?
		WHERE key = ? AND token = ? AND expires_at > ?`,
		expires, lk.key, lk.token, now)
	if err != nil {
		return fmt.Errorf("extending lock %q: %w", lk.key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("extending lock %q: %w", lk.key, err)
	}
	if n == 0 {
		return ErrLock
	}
	return nil
}

// Unlock releases the lease. Releasing an expired or taken-over lease is
// a no-op, never an error, so cleanup paths can call it unconditionally.
func (lk *sqliteLock) Unlock(ctx context.Context) error {
	_, err := lk.locker.db.ExecContext(ctx,
		`DELETE FROM locks WHERE key = ? AND token = ?`, lk.key, lk.token)
	if err != nil {
		return fmt.Errorf("releasing lock %q: %w", lk.key, err)
	}
	lk.locker.logger.Debug("lock released", "key", lk.key)
	return nil
}
