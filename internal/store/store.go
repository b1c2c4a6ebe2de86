// ABOUTME: Store interface and data types for replybot persistence
// ABOUTME: Defines Session, Bot, User, Reply structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Session status values. A session only ever moves OPEN -> CLOSED;
// further dialogue opens a new session record.
const (
	SessionStatusOpen   = "OPEN"
	SessionStatusClosed = "CLOSED"
)

// Session represents one ongoing conversation between the bot and a user
// in a channel.
type Session struct {
	ID        string
	BotID     string
	TeamID    string
	ChannelID string
	UserID    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the session can still accept dialogue.
func (s *Session) IsOpen() bool {
	return s != nil && s.Status == SessionStatusOpen
}

// Bot holds the configured identity and escalation contacts of a bot.
type Bot struct {
	ID              string
	TeamID          string
	Name            string
	Purpose         string
	PointsOfContact []string
}

// User is a member of the team the bot serves.
type User struct {
	ID      string
	TeamID  string
	Name    string
	IsAdmin bool
	Invited bool
}

// Reply is one knowledge-base entry the search backend matches against.
type Reply struct {
	ID     string
	TeamID string
	Title  string
	Body   string
}

// OpenParams identifies the conversation key for GetOrOpenSession.
type OpenParams struct {
	BotID     string
	TeamID    string
	ChannelID string
	UserID    string

	// Open controls whether a new session is created when no open one
	// exists. Ambient continuations pass false: they only ever continue
	// an existing dialogue.
	Open bool
}

// LookupParams identifies a session by a message recorded in its log,
// used for reaction events that reference an earlier message.
type LookupParams struct {
	BotID     string
	TeamID    string
	ChannelID string
	MessageID string
	UserID    string
}

// SessionResult is a session with its ordered event log.
type SessionResult struct {
	Session *Session
	Events  []*SessionEvent
}

// Store defines the persistence interface for sessions and team data.
type Store interface {
	// Sessions
	GetOrOpenSession(ctx context.Context, params OpenParams) (*SessionResult, error)
	LookupSession(ctx context.Context, params LookupParams) (*SessionResult, error)
	// CommitSession appends the given events to the session's log in
	// order and optionally closes the session, atomically.
	CommitSession(ctx context.Context, session *Session, events []*SessionEvent, close bool) error

	// Team data
	GetBot(ctx context.Context, teamID, botID string) (*Bot, error)
	SaveBot(ctx context.Context, bot *Bot) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUsers(ctx context.Context, teamID string) ([]*User, error)
	GetAdmins(ctx context.Context, teamID string) ([]*User, error)
	SaveUser(ctx context.Context, user *User) error
	GetReplies(ctx context.Context, teamID string) ([]*Reply, error)
	SaveReply(ctx context.Context, reply *Reply) error

	// Reaction listeners mark bot messages whose reactions deserve a
	// conversational response (feedback prompts).
	ListenReactions(ctx context.Context, channel, ts string) error
	ShouldRespondToReaction(ctx context.Context, channel, ts string) (bool, error)
	ClearReactionListener(ctx context.Context, channel, ts string) error

	// Close releases any resources held by the store
	Close() error
}
