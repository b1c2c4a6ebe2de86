// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/event persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// DB exposes the underlying database so collaborators that share the
// file (the lock table, the search tiers) reuse one connection pool.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			bot_id TEXT NOT NULL,
			team_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_key
			ON sessions(bot_id, team_id, channel_id, user_id, status);

		CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			bot_id TEXT NOT NULL,
			team_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			message_id TEXT,
			message TEXT,
			meta TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_session_events_seq
			ON session_events(session_id, seq);

		CREATE INDEX IF NOT EXISTS idx_session_events_message
			ON session_events(channel_id, message_id);

		CREATE TABLE IF NOT EXISTS bots (
			id TEXT NOT NULL,
			team_id TEXT NOT NULL,
			name TEXT NOT NULL,
			purpose TEXT,
			points_of_contact TEXT,
			PRIMARY KEY (team_id, id)
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			name TEXT,
			is_admin INTEGER NOT NULL DEFAULT 0,
			invited INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_users_team ON users(team_id);

		CREATE TABLE IF NOT EXISTS replies (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_replies_team ON replies(team_id);

		CREATE TABLE IF NOT EXISTS reaction_listeners (
			channel TEXT NOT NULL,
			ts TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (channel, ts)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrOpenSession returns the open session for the conversation key, or
// creates a new one when params.Open allows it. A missing session with
// Open=false returns ErrNotFound.
func (s *SQLiteStore) GetOrOpenSession(ctx context.Context, params OpenParams) (*SessionResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bot_id, team_id, channel_id, user_id, status, created_at, updated_at
		FROM sessions
		WHERE bot_id = ? AND team_id = ? AND channel_id = ? AND user_id = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`,
		params.BotID, params.TeamID, params.ChannelID, params.UserID, SessionStatusOpen)

	session, err := scanSession(row)
	if err == nil {
		events, err := s.loadEvents(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		return &SessionResult{Session: session, Events: events}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if !params.Open {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	session = &Session{
		ID:        uuid.New().String(),
		BotID:     params.BotID,
		TeamID:    params.TeamID,
		ChannelID: params.ChannelID,
		UserID:    params.UserID,
		Status:    SessionStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, bot_id, team_id, channel_id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.BotID, session.TeamID, session.ChannelID, session.UserID,
		session.Status, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("session created", "session_id", session.ID, "channel", session.ChannelID, "user", session.UserID)
	return &SessionResult{Session: session}, nil
}

// LookupSession finds the session whose log contains the referenced
// message. Used for reaction events.
func (s *SQLiteStore) LookupSession(ctx context.Context, params LookupParams) (*SessionResult, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id FROM session_events
		WHERE channel_id = ? AND message_id = ? AND bot_id = ? AND team_id = ?
		ORDER BY created_at DESC LIMIT 1`,
		params.ChannelID, params.MessageID, params.BotID, params.TeamID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session by message: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, bot_id, team_id, channel_id, user_id, status, created_at, updated_at
		FROM sessions WHERE id = ?`, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	events, err := s.loadEvents(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: session, Events: events}, nil
}

// CommitSession appends events to the log and optionally closes the
// session, in one transaction.
func (s *SQLiteStore) CommitSession(ctx context.Context, session *Session, events []*SessionEvent, close bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM session_events WHERE session_id = ?`, session.ID).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading event sequence: %w", err)
	}
	seq := int(maxSeq.Int64)

	for _, event := range events {
		seq++
		event.Seq = seq
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}

		var message, meta []byte
		if event.Message != nil {
			if message, err = json.Marshal(event.Message); err != nil {
				return fmt.Errorf("encoding message snapshot: %w", err)
			}
		}
		if event.Meta != nil {
			if meta, err = json.Marshal(event.Meta); err != nil {
				return fmt.Errorf("encoding event meta: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_events
				(id, session_id, seq, bot_id, team_id, channel_id, user_id, type, message_id, message, meta, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.ID, session.ID, event.Seq, event.BotID, event.TeamID, event.ChannelID,
			event.UserID, event.Type, nullString(event.MessageID),
			nullBytes(message), nullBytes(meta), event.CreatedAt)
		if err != nil {
			return fmt.Errorf("appending event: %w", err)
		}
	}

	status := session.Status
	if close {
		status = SessionStatusClosed
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, session.ID); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}

	session.Status = status
	session.UpdatedAt = now
	s.logger.Debug("session committed",
		"session_id", session.ID,
		"events", len(events),
		"closed", close)
	return nil
}

func (s *SQLiteStore) loadEvents(ctx context.Context, sessionID string) ([]*SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, bot_id, team_id, channel_id, user_id, type, message_id, message, meta, created_at
		FROM session_events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	defer rows.Close()

	var events []*SessionEvent
	for rows.Next() {
		event := &SessionEvent{}
		var messageID sql.NullString
		var message, meta sql.NullString
		err := rows.Scan(&event.ID, &event.SessionID, &event.Seq, &event.BotID, &event.TeamID,
			&event.ChannelID, &event.UserID, &event.Type, &messageID, &message, &meta, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		event.MessageID = messageID.String
		if message.Valid && message.String != "" {
			if err := json.Unmarshal([]byte(message.String), &event.Message); err != nil {
				return nil, fmt.Errorf("decoding message snapshot: %w", err)
			}
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &event.Meta); err != nil {
				return nil, fmt.Errorf("decoding event meta: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanSession(row *sql.Row) (*Session, error) {
	session := &Session{}
	err := row.Scan(&session.ID, &session.BotID, &session.TeamID, &session.ChannelID,
		&session.UserID, &session.Status, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetBot returns the configured bot record for a team.
func (s *SQLiteStore) GetBot(ctx context.Context, teamID, botID string) (*Bot, error) {
	bot := &Bot{}
	var purpose, contacts sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, purpose, points_of_contact FROM bots WHERE team_id = ? AND id = ?`,
		teamID, botID).Scan(&bot.ID, &bot.TeamID, &bot.Name, &purpose, &contacts)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading bot: %w", err)
	}
	bot.Purpose = purpose.String
	if contacts.Valid && contacts.String != "" {
		bot.PointsOfContact = strings.Split(contacts.String, ",")
	}
	return bot, nil
}

// SaveBot inserts or replaces a bot record.
func (s *SQLiteStore) SaveBot(ctx context.Context, bot *Bot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bots (id, team_id, name, purpose, points_of_contact)
		VALUES (?, ?, ?, ?, ?)`,
		bot.ID, bot.TeamID, bot.Name, bot.Purpose, strings.Join(bot.PointsOfContact, ","))
	if err != nil {
		return fmt.Errorf("saving bot: %w", err)
	}
	return nil
}

// GetUser returns a single user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	user := &User{}
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, is_admin, invited FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.TeamID, &name, &user.IsAdmin, &user.Invited)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	user.Name = name.String
	return user, nil
}

// GetUsers returns all users in a team.
func (s *SQLiteStore) GetUsers(ctx context.Context, teamID string) ([]*User, error) {
	return s.queryUsers(ctx, `SELECT id, team_id, name, is_admin, invited FROM users WHERE team_id = ? ORDER BY id`, teamID)
}

// GetAdmins returns the team's admin users.
func (s *SQLiteStore) GetAdmins(ctx context.Context, teamID string) ([]*User, error) {
	return s.queryUsers(ctx, `SELECT id, team_id, name, is_admin, invited FROM users WHERE team_id = ? AND is_admin = 1 ORDER BY id`, teamID)
}

func (s *SQLiteStore) queryUsers(ctx context.Context, query string, args ...any) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		var name sql.NullString
		if err := rows.Scan(&user.ID, &user.TeamID, &name, &user.IsAdmin, &user.Invited); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		user.Name = name.String
		users = append(users, user)
	}
	return users, rows.Err()
}

// SaveUser inserts or replaces a user record.
func (s *SQLiteStore) SaveUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (id, team_id, name, is_admin, invited)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.TeamID, user.Name, user.IsAdmin, user.Invited)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// GetReplies returns all knowledge-base entries for a team.
func (s *SQLiteStore) GetReplies(ctx context.Context, teamID string) ([]*Reply, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, title, body FROM replies WHERE team_id = ? ORDER BY id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("loading replies: %w", err)
	}
	defer rows.Close()

	var replies []*Reply
	for rows.Next() {
		reply := &Reply{}
		if err := rows.Scan(&reply.ID, &reply.TeamID, &reply.Title, &reply.Body); err != nil {
			return nil, fmt.Errorf("scanning reply: %w", err)
		}
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}

// SaveReply inserts or replaces a knowledge-base entry.
func (s *SQLiteStore) SaveReply(ctx context.Context, reply *Reply) error {
	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO replies (id, team_id, title, body)
		VALUES (?, ?, ?, ?)`,
		reply.ID, reply.TeamID, reply.Title, reply.Body)
	if err != nil {
		return fmt.Errorf("saving reply: %w", err)
	}
	return nil
}

// ListenReactions marks a sent message as one whose reactions should get
// a conversational response.
func (s *SQLiteStore) ListenReactions(ctx context.Context, channel, ts string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reaction_listeners (channel, ts, created_at)
		VALUES (?, ?, ?)`, channel, ts, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("registering reaction listener: %w", err)
	}
	return nil
}

// ShouldRespondToReaction reports whether a listener is registered for
// the message.
func (s *SQLiteStore) ShouldRespondToReaction(ctx context.Context, channel, ts string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reaction_listeners WHERE channel = ? AND ts = ?`, channel, ts).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking reaction listener: %w", err)
	}
	return count > 0, nil
}

// ClearReactionListener removes the listener for a message.
func (s *SQLiteStore) ClearReactionListener(ctx context.Context, channel, ts string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reaction_listeners WHERE channel = ? AND ts = ?`, channel, ts)
	if err != nil {
		return fmt.Errorf("clearing reaction listener: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
