// ABOUTME: Tests for the SQLite store
// ABOUTME: Covers session round-trips, event ordering, team data, and reaction listeners

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "replybot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func openParams() OpenParams {
	return OpenParams{BotID: "B1", TeamID: "T1", ChannelID: "D1", UserID: "U1", Open: true}
}

func TestGetOrOpenSession_CreatesAndReuses(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	require.NotNil(t, first.Session)
	assert.Equal(t, SessionStatusOpen, first.Session.Status)
	assert.Empty(t, first.Events)

	second, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, second.Session.ID)
}

func TestGetOrOpenSession_ContinueOnlyMisses(t *testing.T) {
	st := newTestStore(t)
	params := openParams()
	params.Open = false

	_, err := st.GetOrOpenSession(context.Background(), params)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrOpenSession_ClosedSessionNotReused(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	require.NoError(t, st.CommitSession(ctx, first.Session, nil, true))
	assert.Equal(t, SessionStatusClosed, first.Session.Status)

	second, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
}

func TestCommitSession_AppendsInOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	result, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	session := result.Session

	batch := func(types ...string) []*SessionEvent {
		events := make([]*SessionEvent, len(types))
		for i, eventType := range types {
			events[i] = &SessionEvent{
				SessionID: session.ID,
				BotID:     "B1",
				TeamID:    "T1",
				ChannelID: "D1",
				UserID:    "U1",
				Type:      eventType,
			}
		}
		return events
	}

	require.NoError(t, st.CommitSession(ctx, session, batch(EventMessageReceived, EventGreetingFlow), false))
	require.NoError(t, st.CommitSession(ctx, session, batch(EventMessageSent), false))

	loaded, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	require.Len(t, loaded.Events, 3)
	for i, event := range loaded.Events {
		assert.Equal(t, i+1, event.Seq)
	}
	assert.Equal(t, EventMessageReceived, loaded.Events[0].Type)
	assert.Equal(t, EventGreetingFlow, loaded.Events[1].Type)
	assert.Equal(t, EventMessageSent, loaded.Events[2].Type)
}

func TestCommitSession_RoundTripsSnapshotsAndMeta(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	result, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	session := result.Session

	positive := true
	events := []*SessionEvent{
		{
			SessionID: session.ID,
			BotID:     "B1", TeamID: "T1", ChannelID: "D1", UserID: "U1",
			Type:      EventMessageReceived,
			MessageID: "100.000001",
			Message: &platform.Event{
				Type:    platform.TypeMessage,
				Event:   platform.EventDirectMessage,
				Text:    "what's the wifi password?",
				User:    "U1",
				Channel: "D1",
				TS:      "100.000001",
			},
		},
		{
			SessionID: session.ID,
			BotID:     "B1", TeamID: "T1", ChannelID: "D1", UserID: "U1",
			Type: EventMultipleResults,
			Meta: &EventMeta{
				Query:  "wifi password",
				TookMS: 42,
				Hits: []search.Hit{
					{ID: "r1", Title: "Guest wifi", Body: "hunter2"},
					{ID: "r2", Title: "Staff wifi", Body: "hunter3"},
				},
			},
		},
		{
			SessionID: session.ID,
			BotID:     "B1", TeamID: "T1", ChannelID: "D1", UserID: "U1",
			Type: EventFeedback,
			Meta: &EventMeta{Positive: &positive},
		},
	}
	require.NoError(t, st.CommitSession(ctx, session, events, false))

	loaded, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	require.Len(t, loaded.Events, 3)

	received := loaded.Events[0]
	require.NotNil(t, received.Message)
	assert.Equal(t, "what's the wifi password?", received.Message.Text)
	assert.Equal(t, "100.000001", received.MessageID)

	results := loaded.Events[1]
	require.NotNil(t, results.Meta)
	assert.Equal(t, "wifi password", results.Meta.Query)
	assert.Equal(t, int64(42), results.Meta.TookMS)
	require.Len(t, results.Meta.Hits, 2)
	assert.Equal(t, "Guest wifi", results.Meta.Hits[0].Title)

	feedback := loaded.Events[2]
	require.NotNil(t, feedback.Meta)
	require.NotNil(t, feedback.Meta.Positive)
	assert.True(t, *feedback.Meta.Positive)
}

func TestLookupSession_ByMessage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	result, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	session := result.Session

	events := []*SessionEvent{{
		SessionID: session.ID,
		BotID:     "B1", TeamID: "T1", ChannelID: "D1", UserID: "U1",
		Type:      EventMessageSent,
		MessageID: "200.000001",
		Message:   &platform.Event{TS: "200.000001", Channel: "D1"},
	}}
	require.NoError(t, st.CommitSession(ctx, session, events, false))

	found, err := st.LookupSession(ctx, LookupParams{
		BotID: "B1", TeamID: "T1", ChannelID: "D1", MessageID: "200.000001", UserID: "U1",
	})
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.Session.ID)
	require.Len(t, found.Events, 1)

	_, err = st.LookupSession(ctx, LookupParams{
		BotID: "B1", TeamID: "T1", ChannelID: "D1", MessageID: "999.000001",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBots_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetBot(ctx, "T1", "B1")
	assert.ErrorIs(t, err, ErrNotFound)

	bot := &Bot{
		ID:              "B1",
		TeamID:          "T1",
		Name:            "replybot",
		Purpose:         "I answer questions about the office.",
		PointsOfContact: []string{"U7", "U8"},
	}
	require.NoError(t, st.SaveBot(ctx, bot))

	loaded, err := st.GetBot(ctx, "T1", "B1")
	require.NoError(t, err)
	assert.Equal(t, bot.Purpose, loaded.Purpose)
	assert.Equal(t, []string{"U7", "U8"}, loaded.PointsOfContact)
}

func TestUsers_AdminsAndInvites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveUser(ctx, &User{ID: "U1", TeamID: "T1", Name: "ana"}))
	require.NoError(t, st.SaveUser(ctx, &User{ID: "U2", TeamID: "T1", Name: "ben", IsAdmin: true}))
	require.NoError(t, st.SaveUser(ctx, &User{ID: "U3", TeamID: "T2", Name: "cay", IsAdmin: true}))

	users, err := st.GetUsers(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, users, 2)

	admins, err := st.GetAdmins(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "U2", admins[0].ID)

	// Save is an upsert.
	require.NoError(t, st.SaveUser(ctx, &User{ID: "U1", TeamID: "T1", Name: "ana", Invited: true}))
	user, err := st.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, user.Invited)
}

func TestReplies_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	reply := &Reply{TeamID: "T1", Title: "Guest wifi", Body: "hunter2"}
	require.NoError(t, st.SaveReply(ctx, reply))
	assert.NotEmpty(t, reply.ID, "missing ids are assigned on save")

	replies, err := st.GetReplies(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "Guest wifi", replies[0].Title)

	none, err := st.GetReplies(ctx, "T2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReactionListeners(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.ShouldRespondToReaction(ctx, "D1", "100.000001")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.ListenReactions(ctx, "D1", "100.000001"))

	ok, err = st.ShouldRespondToReaction(ctx, "D1", "100.000001")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.ClearReactionListener(ctx, "D1", "100.000001"))

	ok, err = st.ShouldRespondToReaction(ctx, "D1", "100.000001")
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing twice is fine.
	require.NoError(t, st.ClearReactionListener(ctx, "D1", "100.000001"))
}

func TestCommitSession_CloseIsSticky(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	result, err := st.GetOrOpenSession(ctx, openParams())
	require.NoError(t, err)
	session := result.Session
	created := session.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.CommitSession(ctx, session, nil, true))
	assert.Equal(t, SessionStatusClosed, session.Status)
	assert.True(t, session.UpdatedAt.After(created))

	// A later commit without close doesn't reopen it.
	require.NoError(t, st.CommitSession(ctx, session, nil, false))
	params := openParams()
	params.Open = false
	_, err = st.GetOrOpenSession(ctx, params)
	assert.ErrorIs(t, err, ErrNotFound)
}
