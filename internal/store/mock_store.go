// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session        // keyed by session ID
	events    map[string][]*SessionEvent // keyed by session ID, in seq order
	bots      map[string]*Bot            // keyed by "teamID:botID"
	users     map[string]*User           // keyed by user ID
	replies   map[string]*Reply          // keyed by reply ID
	listeners map[string]bool            // keyed by "channel:ts"
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions:  make(map[string]*Session),
		events:    make(map[string][]*SessionEvent),
		bots:      make(map[string]*Bot),
		users:     make(map[string]*User),
		replies:   make(map[string]*Reply),
		listeners: make(map[string]bool),
	}
}

// GetOrOpenSession returns the open session for the key, creating one
// when params.Open allows it.
func (m *MockStore) GetOrOpenSession(ctx context.Context, params OpenParams) (*SessionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newest *Session
	for _, s := range m.sessions {
		if s.BotID == params.BotID && s.TeamID == params.TeamID &&
			s.ChannelID == params.ChannelID && s.UserID == params.UserID &&
			s.Status == SessionStatusOpen {
			if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
				newest = s
			}
		}
	}
	if newest != nil {
		copied := *newest
		return &SessionResult{Session: &copied, Events: m.copyEvents(newest.ID)}, nil
	}

	if !params.Open {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.New().String(),
		BotID:     params.BotID,
		TeamID:    params.TeamID,
		ChannelID: params.ChannelID,
		UserID:    params.UserID,
		Status:    SessionStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored := *session
	m.sessions[session.ID] = &stored
	return &SessionResult{Session: session}, nil
}

// LookupSession finds the session containing the referenced message.
func (m *MockStore) LookupSession(ctx context.Context, params LookupParams) (*SessionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *SessionEvent
	for _, events := range m.events {
		for _, event := range events {
			if event.ChannelID == params.ChannelID && event.MessageID == params.MessageID {
				if found == nil || event.CreatedAt.After(found.CreatedAt) {
					found = event
				}
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	session, ok := m.sessions[found.SessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &SessionResult{Session: &copied, Events: m.copyEvents(session.ID)}, nil
}

// CommitSession appends events and optionally closes the session.
func (m *MockStore) CommitSession(ctx context.Context, session *Session, events []*SessionEvent, close bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[session.ID]
	if !ok {
		copied := *session
		m.sessions[session.ID] = &copied
		stored = &copied
	}

	seq := len(m.events[session.ID])
	for _, event := range events {
		seq++
		event.Seq = seq
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}
		copied := *event
		copied.SessionID = session.ID
		m.events[session.ID] = append(m.events[session.ID], &copied)
	}

	if close {
		stored.Status = SessionStatusClosed
		session.Status = SessionStatusClosed
	}
	stored.UpdatedAt = time.Now().UTC()
	session.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MockStore) copyEvents(sessionID string) []*SessionEvent {
	events := m.events[sessionID]
	out := make([]*SessionEvent, 0, len(events))
	for _, event := range events {
		copied := *event
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// SessionByID returns a stored session for assertions.
func (m *MockStore) SessionByID(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		copied := *s
		return &copied
	}
	return nil
}

// EventsByID returns the stored event log for assertions.
func (m *MockStore) EventsByID(id string) []*SessionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyEvents(id)
}

// GetBot returns a bot record.
func (m *MockStore) GetBot(ctx context.Context, teamID, botID string) (*Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bot, ok := m.bots[teamID+":"+botID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *bot
	return &copied, nil
}

// SaveBot stores a bot record.
func (m *MockStore) SaveBot(ctx context.Context, bot *Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *bot
	m.bots[bot.TeamID+":"+bot.ID] = &copied
	return nil
}

// GetUser returns a user by id.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUsers returns all users in a team.
func (m *MockStore) GetUsers(ctx context.Context, teamID string) ([]*User, error) {
	return m.filterUsers(teamID, false), nil
}

// GetAdmins returns the team's admins.
func (m *MockStore) GetAdmins(ctx context.Context, teamID string) ([]*User, error) {
	return m.filterUsers(teamID, true), nil
}

func (m *MockStore) filterUsers(teamID string, adminsOnly bool) []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []*User
	for _, user := range m.users {
		if user.TeamID != teamID {
			continue
		}
		if adminsOnly && !user.IsAdmin {
			continue
		}
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// SaveUser stores a user record.
func (m *MockStore) SaveUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

// GetReplies returns all replies for a team.
func (m *MockStore) GetReplies(ctx context.Context, teamID string) ([]*Reply, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var replies []*Reply
	for _, reply := range m.replies {
		if reply.TeamID == teamID {
			copied := *reply
			replies = append(replies, &copied)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].ID < replies[j].ID })
	return replies, nil
}

// SaveReply stores a reply record.
func (m *MockStore) SaveReply(ctx context.Context, reply *Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	copied := *reply
	m.replies[reply.ID] = &copied
	return nil
}

// ListenReactions registers a reaction listener.
func (m *MockStore) ListenReactions(ctx context.Context, channel, ts string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[listenerKey(channel, ts)] = true
	return nil
}

// ShouldRespondToReaction reports whether a listener exists.
func (m *MockStore) ShouldRespondToReaction(ctx context.Context, channel, ts string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listeners[listenerKey(channel, ts)], nil
}

// ClearReactionListener removes a listener.
func (m *MockStore) ClearReactionListener(ctx context.Context, channel, ts string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, listenerKey(channel, ts))
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error { return nil }

func listenerKey(channel, ts string) string {
	return strings.Join([]string{channel, ts}, ":")
}
