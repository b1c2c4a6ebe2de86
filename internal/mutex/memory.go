// ABOUTME: In-memory Locker implementation for tests and single-process runs
// ABOUTME: Same lease semantics as the SQLite locker without a database

package mutex

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryLease struct {
	token   string
	expires time.Time
}

// MemoryLocker implements Locker with an in-process map. It provides the
// same lease semantics as SQLiteLocker but no cross-process exclusion.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	nextID int
	now    func() time.Time
}

// NewMemoryLocker creates an empty in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		leases: make(map[string]memoryLease),
		now:    time.Now,
	}
}

// Lock acquires the key for ttl, or returns ErrLock if an unexpired
// lease exists.
func (l *MemoryLocker) Lock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	// Same reaping policy as the SQLite locker: claim leases are never
	// unlocked, so expired entries are dropped on acquire.
	for k, lease := range l.leases {
		if !lease.expires.After(now) {
			delete(l.leases, k)
		}
	}
	if lease, ok := l.leases[key]; ok && lease.expires.After(now) {
		return nil, ErrLock
	}

	l.nextID++
	token := key + "#" + strconv.Itoa(l.nextID)
	l.leases[key] = memoryLease{token: token, expires: now.Add(ttl)}
	return &memoryLock{locker: l, key: key, token: token}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (lk *memoryLock) Key() string { return lk.key }

func (lk *memoryLock) Extend(ctx context.Context, ttl time.Duration) error {
	lk.locker.mu.Lock()
	defer lk.locker.mu.Unlock()

	now := lk.locker.now()
	lease, ok := lk.locker.leases[lk.key]
	if !ok || lease.token != lk.token || !lease.expires.After(now) {
		return ErrLock
	}
	lease.expires = now.Add(ttl)
	lk.locker.leases[lk.key] = lease
	return nil
}

func (lk *memoryLock) Unlock(ctx context.Context) error {
	lk.locker.mu.Lock()
	defer lk.locker.mu.Unlock()

	if lease, ok := lk.locker.leases[lk.key]; ok && lease.token == lk.token {
		delete(lk.locker.leases, lk.key)
	}
	return nil
}
