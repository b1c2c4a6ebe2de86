// ABOUTME: Session lifecycle: locking, opening, timing out, and committing sessions
// ABOUTME: All mutation of thread state goes through the manager's append/commit APIs

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/replybot/internal/mutex"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/store"
)

// ErrMissingThread is returned when an operation requires an attached
// thread and the context has none.
var ErrMissingThread = errors.New("missing thread")

// Options holds the manager's timing knobs.
type Options struct {
	// LockTTL bounds how long a session lock is held before other
	// processes may take it over.
	LockTTL time.Duration
	// RetryInterval is the backoff between lock acquisition attempts.
	RetryInterval time.Duration
	// MaxMessageAge is the inactivity threshold after which an ambient
	// continuation closes the session.
	MaxMessageAge time.Duration
}

// DefaultOptions mirror the production timing policy.
func DefaultOptions() Options {
	return Options{
		LockTTL:       5 * time.Second,
		RetryInterval: 20 * time.Millisecond,
		MaxMessageAge: 60 * time.Second,
	}
}

// Manager opens, locks, times out, and commits conversation sessions.
type Manager struct {
	store  store.Store
	locker mutex.Locker
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager.
func NewManager(st store.Store, locker mutex.Locker, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = DefaultOptions().LockTTL
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = DefaultOptions().RetryInterval
	}
	if opts.MaxMessageAge == 0 {
		opts.MaxMessageAge = DefaultOptions().MaxMessageAge
	}
	return &Manager{
		store:  st,
		locker: locker,
		opts:   opts,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// ShouldLock reports whether the event participates in session handling
// at all. Only message- and reaction-shaped events do, and self events,
// odd subtypes, and system pseudo-user chatter (outside explicit DMs)
// are excluded.
func (m *Manager) ShouldLock(event *platform.Event) bool {
	if event.IsSelf() {
		return false
	}
	if event.Type != platform.TypeMessage && event.Type != platform.TypeReactionAdded {
		return false
	}
	if event.Subtype != "" && event.Subtype != "bot_message" {
		return false
	}
	if event.Username == platform.SystemUsername && event.Event != platform.EventDirectMessage {
		return false
	}
	if event.User == platform.SystemUserID && event.Event != platform.EventDirectMessage {
		return false
	}
	return true
}

// shouldOpen reports whether the event explicitly opens dialogue. Such
// events always get a usable open thread; everything else only continues
// an existing one.
func (m *Manager) shouldOpen(event *platform.Event) bool {
	switch event.Event {
	case platform.EventDirectMessage, platform.EventDirectMention, platform.EventMention:
		return true
	}
	return false
}

// shouldTimeout applies the inactivity policy: only ambient
// continuations ever time a session out.
func (m *Manager) shouldTimeout(event *platform.Event, thread *Thread) bool {
	if event.Event != platform.EventAmbient {
		return false
	}
	return thread.TimedOut(m.opts.MaxMessageAge, m.now())
}

// Open locks the conversation key and materializes its thread.
//
// If the context already holds a locked thread, that lock is extended
// instead of acquiring a fresh one, so no other process can slip in
// between closing an old session and opening its successor. A store miss
// releases the lock and attaches nothing; the caller proceeds without
// dialogue state. Returns mutex.ErrLock when another process holds the
// key.
func (m *Manager) Open(ctx context.Context, pctx *Context, event *platform.Event, shouldOpen bool) (*Thread, error) {
	params := store.OpenParams{
		BotID:  pctx.Identities.BotID,
		TeamID: pctx.Identities.TeamID,
		UserID: event.User,
		Open:   shouldOpen,
	}

	lookup := false
	var lookupParams store.LookupParams
	if event.Item != nil && event.Item.Channel != "" {
		// Fetch the session that owns the referenced message instead of
		// the reacting user's own conversation.
		params.ChannelID = event.Item.Channel
		params.UserID = event.ItemUser
		lookup = true
		lookupParams = store.LookupParams{
			BotID:     params.BotID,
			TeamID:    params.TeamID,
			ChannelID: event.Item.Channel,
			MessageID: event.Item.TS,
			UserID:    event.ItemUser,
		}
	} else {
		params.ChannelID = event.Channel
	}

	var lock mutex.Lock
	if existing := pctx.Thread(); existing != nil && existing.Lock != nil {
		// Extend the held lock so pending messages can't interleave
		// while we swap sessions. Contention on extend means the lease
		// lapsed; fall through to a fresh acquire.
		if err := existing.Lock.Extend(ctx, m.opts.LockTTL); err != nil {
			if !errors.Is(err, mutex.ErrLock) {
				return nil, err
			}
		} else {
			lock = existing.Lock
		}
	}
	if lock == nil {
		key := mutex.SessionKey(params.BotID, params.TeamID, params.ChannelID, params.UserID)
		var err error
		lock, err = m.locker.Lock(ctx, key, m.opts.LockTTL)
		if err != nil {
			return nil, err
		}
	}

	var result *store.SessionResult
	var err error
	if lookup {
		result, err = m.store.LookupSession(ctx, lookupParams)
	} else {
		result, err = m.store.GetOrOpenSession(ctx, params)
	}
	if err != nil {
		if uerr := lock.Unlock(ctx); uerr != nil {
			m.logger.Warn("failed to unlock after store error", "error", uerr, "key", lock.Key())
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	thread := NewThread(result.Session, result.Events, lock)
	if m.shouldTimeout(event, thread) {
		m.logger.Debug("session timed out", "session_id", thread.Model.ID)
		if err := m.commitThread(ctx, thread, true); err != nil {
			return nil, err
		}
	}
	pctx.SetThread(thread)
	return thread, nil
}

// Start ensures dialogue begins on a clean session: a session that
// already has events is closed and replaced, while an empty one is
// reused as-is.
func (m *Manager) Start(ctx context.Context, pctx *Context, event *platform.Event) (*Thread, error) {
	thread := pctx.Thread()
	if thread == nil {
		return nil, ErrMissingThread
	}

	if len(thread.Events()) == 0 {
		return thread, nil
	}

	if err := m.commitThread(ctx, thread, true); err != nil {
		return nil, err
	}
	return m.Open(ctx, pctx, event, true)
}

// Commit persists the thread's pending events, closing the session when
// requested here or earlier via the context's force-close flag.
func (m *Manager) Commit(ctx context.Context, pctx *Context, close bool) error {
	thread := pctx.Thread()
	if thread == nil {
		return ErrMissingThread
	}
	return m.commitThread(ctx, thread, close || pctx.ForceClose())
}

func (m *Manager) commitThread(ctx context.Context, thread *Thread, close bool) error {
	if err := m.store.CommitSession(ctx, thread.Model, thread.Pending(), close); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	thread.MarkCommitted()
	return nil
}

// Receive appends a RECEIVED event for the inbound message. Appends on
// an expired context are dropped: the flow body outlived its watchdog
// and the final commit has already happened without it.
func (m *Manager) Receive(pctx *Context, event *platform.Event) error {
	thread := pctx.Thread()
	if thread == nil {
		return ErrMissingThread
	}
	if pctx.Expired() {
		return nil
	}
	thread.Append(m.newEvent(thread, store.EventMessageReceived, event, nil))
	return nil
}

// Sent appends a SENT event for a delivered response. A missing thread
// is fine: not every outbound message belongs to a dialogue.
func (m *Manager) Sent(pctx *Context, message *platform.Event) {
	thread := pctx.Thread()
	if thread == nil || pctx.Expired() {
		return
	}
	thread.Append(m.newEvent(thread, store.EventMessageSent, message, nil))
}

// Log appends a generic event of the given type with optional meta.
// Expired contexts drop the append, like Receive.
func (m *Manager) Log(pctx *Context, eventType string, meta *store.EventMeta) error {
	thread := pctx.Thread()
	if thread == nil {
		return ErrMissingThread
	}
	if pctx.Expired() {
		return nil
	}
	thread.Append(m.newEvent(thread, eventType, nil, meta))
	return nil
}

func (m *Manager) newEvent(thread *Thread, eventType string, message *platform.Event, meta *store.EventMeta) *store.SessionEvent {
	event := &store.SessionEvent{
		SessionID: thread.Model.ID,
		BotID:     thread.Model.BotID,
		TeamID:    thread.Model.TeamID,
		ChannelID: thread.Model.ChannelID,
		UserID:    thread.Model.UserID,
		Type:      eventType,
		Meta:      meta,
		CreatedAt: m.now().UTC(),
	}
	if message != nil {
		snapshot := *message
		event.Message = &snapshot
		event.MessageID = message.TS
	}
	return event
}

// Handle is the session middleware: it decides whether the event needs
// locking, runs the lock retry loop, invokes next under the lock, then
// unconditionally commits and unlocks.
//
// Lock contention retries forever on a fixed backoff, bounded only by
// ctx; any other open error is logged and the event dropped, failing
// open rather than blocking the pipeline.
func (m *Manager) Handle(ctx context.Context, pctx *Context, event *platform.Event, next func(context.Context) error) error {
	if !m.ShouldLock(event) {
		return next(ctx)
	}

	shouldOpen := m.shouldOpen(event)
	for {
		_, err := m.Open(ctx, pctx, event, shouldOpen)
		if err == nil {
			break
		}
		if errors.Is(err, mutex.ErrLock) {
			m.logger.Debug("another process has locked the session", "channel", event.Channel, "user", event.User)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.opts.RetryInterval):
			}
			continue
		}
		m.logger.Error("error locking session", "error", err, "channel", event.Channel, "user", event.User)
		return nil
	}

	if pctx.Thread() == nil {
		return nil
	}

	nextErr := next(ctx)

	// The flow may have swapped in a fresh session; commit and unlock
	// whatever is attached now.
	thread := pctx.Thread()
	if err := m.Commit(ctx, pctx, false); err != nil {
		m.logger.Error("error committing session", "error", err, "session_id", thread.Model.ID)
	}
	if err := thread.Lock.Unlock(ctx); err != nil {
		m.logger.Warn("error unlocking session", "error", err, "key", thread.Lock.Key())
	}
	return nextErr
}
