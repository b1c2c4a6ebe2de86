// ABOUTME: Distributed TTL locks keyed by conversation or message identity
// ABOUTME: At most one process holds a key; an expired lease counts as unlocked

package mutex

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrLock is returned when another holder owns the key. It is the only
// lock failure callers are expected to recover from (by retrying).
var ErrLock = errors.New("lock held by another process")

// Lock is a held lease. Extend and Unlock only succeed while the lease
// is still valid; after the TTL elapses another process may take the key
// and this handle becomes inert.
type Lock interface {
	Key() string
	Extend(ctx context.Context, ttl time.Duration) error
	Unlock(ctx context.Context) error
}

// Locker acquires exclusive time-boxed leases.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// SessionKey builds the lock key for a conversation session.
func SessionKey(botID, teamID, channelID, userID string) string {
	return strings.Join([]string{"session", botID, teamID, channelID, userID}, ":")
}

// MessageKey builds the lock key claiming a single inbound message, used
// to deduplicate redundant deliveries across bot processes.
func MessageKey(botID, channelID, ts string) string {
	return strings.Join([]string{"message", botID, channelID, ts}, ":")
}
