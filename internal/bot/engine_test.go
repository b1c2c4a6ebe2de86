// ABOUTME: Test harness for the engine: fake chat, fake searcher, event builders
// ABOUTME: Engine-level tests for claiming, normalization, and categorization

package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/mutex"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
	"github.com/2389/replybot/internal/track"
)

type sentReply struct {
	Channel  string
	Response platform.Response
	TS       string
}

// fakeChat records outbound traffic and fabricates channels like the
// real platform would.
type fakeChat struct {
	mu               sync.Mutex
	seq              int
	replies          []sentReply
	reactionsAdded   []string
	reactionsRemoved []string
	groupChats       [][]string
	channelNames     map[string]string
}

func newFakeChat() *fakeChat {
	return &fakeChat{channelNames: make(map[string]string)}
}

func (c *fakeChat) Reply(ctx context.Context, channel string, resp platform.Response) (*platform.SentMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	ts := fmt.Sprintf("9000.%06d", c.seq)
	c.replies = append(c.replies, sentReply{Channel: channel, Response: resp, TS: ts})
	return &platform.SentMessage{Channel: channel, TS: ts}, nil
}

func (c *fakeChat) StartTyping(ctx context.Context, channel string) error { return nil }

func (c *fakeChat) OpenDM(ctx context.Context, userID string) (string, error) {
	return "D" + userID, nil
}

func (c *fakeChat) OpenGroupChat(ctx context.Context, userIDs []string) (string, error) {
	distinct := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		distinct[id] = true
	}
	if len(distinct) < 2 {
		return "", platform.ErrNotEnoughUsers
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupChats = append(c.groupChats, userIDs)
	return "G1", nil
}

func (c *fakeChat) AddReaction(ctx context.Context, name, channel, ts string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactionsAdded = append(c.reactionsAdded, name+" "+channel+" "+ts)
	return nil
}

func (c *fakeChat) RemoveReaction(ctx context.Context, name, channel, ts string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactionsRemoved = append(c.reactionsRemoved, name+" "+channel+" "+ts)
	return nil
}

func (c *fakeChat) ChannelName(ctx context.Context, channelID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.channelNames[channelID]; ok {
		return name, nil
	}
	return channelID, nil
}

func (c *fakeChat) sent() []sentReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentReply, len(c.replies))
	copy(out, c.replies)
	return out
}

func (c *fakeChat) texts() []string {
	sent := c.sent()
	texts := make([]string, len(sent))
	for i, r := range sent {
		texts[i] = r.Response.Text
	}
	return texts
}

func (c *fakeChat) textsIn(channel string) []string {
	var texts []string
	for _, r := range c.sent() {
		if r.Channel == channel {
			texts = append(texts, r.Response.Text)
		}
	}
	return texts
}

func (c *fakeChat) lastIn(channel string) (sentReply, bool) {
	sent := c.sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].Channel == channel {
			return sent[i], true
		}
	}
	return sentReply{}, false
}

// fakeSearcher returns a fixed result set, optionally failing a few
// times first.
type fakeSearcher struct {
	mu       sync.Mutex
	tiers    [3]search.Tier
	failures int
	attempts int
	queries  []string
}

func (f *fakeSearcher) Search(ctx context.Context, teamID, query string, opts search.Options) ([3]search.Tier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	f.queries = append(f.queries, query)
	if f.attempts <= f.failures {
		return [3]search.Tier{}, errors.New("backend unavailable")
	}
	return f.tiers, nil
}

type harness struct {
	engine   *Engine
	chat     *fakeChat
	store    *store.MockStore
	searcher *fakeSearcher
	sessions *session.Manager
	tracker  *track.Tracker
}

var testIDs = platform.Identities{
	BotID:    "B1",
	BotName:  "replybot",
	TeamID:   "T1",
	TeamName: "example",
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chat := newFakeChat()
	st := store.NewMockStore()
	locker := mutex.NewMemoryLocker()
	sessions := session.NewManager(st, locker, session.Options{
		LockTTL:       time.Second,
		RetryInterval: 2 * time.Millisecond,
		MaxMessageAge: 60 * time.Second,
	}, logger)
	runner := flow.NewRunner(chat, sessions, 5*time.Millisecond, 2*time.Second, logger)
	tracker := track.New(logger)
	t.Cleanup(tracker.Close)
	searcher := &fakeSearcher{}

	engine := New(Config{
		Chat:       chat,
		Store:      st,
		Sessions:   sessions,
		Locker:     locker,
		Runner:     runner,
		Tracker:    tracker,
		Searcher:   searcher,
		Identities: testIDs,
		ClaimTTL:   time.Minute,
		Search: SearchSettings{
			Size:           26,
			Retries:        3,
			InitialTimeout: time.Millisecond,
			RetryStep:      time.Millisecond,
		},
		Logger: logger,
	})

	return &harness{
		engine:   engine,
		chat:     chat,
		store:    st,
		searcher: searcher,
		sessions: sessions,
		tracker:  tracker,
	}
}

func (h *harness) handle(t *testing.T, event *platform.Event) {
	t.Helper()
	require.NoError(t, h.engine.HandleEvent(context.Background(), event))
}

func (h *harness) seedBot(t *testing.T, purpose string, contacts ...string) {
	t.Helper()
	require.NoError(t, h.store.SaveBot(context.Background(), &store.Bot{
		ID: "B1", TeamID: "T1", Name: "replybot",
		Purpose:         purpose,
		PointsOfContact: contacts,
	}))
}

func (h *harness) seedReply(t *testing.T, title, body string) {
	t.Helper()
	require.NoError(t, h.store.SaveReply(context.Background(), &store.Reply{
		TeamID: "T1", Title: title, Body: body,
	}))
}

// sessionOpen reports whether an open session exists for the key.
func (h *harness) sessionOpen(channel, user string) bool {
	_, err := h.store.GetOrOpenSession(context.Background(), store.OpenParams{
		BotID: "B1", TeamID: "T1", ChannelID: channel, UserID: user, Open: false,
	})
	return err == nil
}

var eventSeq int

// stamp fabricates a current platform timestamp. Timestamps must be
// recent: stale ones read as inactivity and time ambient sessions out.
func stamp() string {
	eventSeq++
	return fmt.Sprintf("%d.%06d", time.Now().Unix(), eventSeq)
}

func dm(text string) *platform.Event {
	return &platform.Event{
		Type:    platform.TypeMessage,
		Event:   platform.EventDirectMessage,
		Text:    text,
		User:    "U1",
		Channel: "D1",
		TS:      stamp(),
	}
}

func directMention(text string) *platform.Event {
	e := dm(text)
	e.Event = platform.EventDirectMention
	e.Channel = "C1"
	return e
}

func ambient(text string) *platform.Event {
	e := dm(text)
	e.Event = platform.EventAmbient
	e.Channel = "C1"
	return e
}

func TestHandleEvent_ClaimsMessageOnce(t *testing.T) {
	h := newHarness(t)
	event := dm("hi")

	h.handle(t, event)
	before := len(h.chat.texts())
	require.Greater(t, before, 0)

	// Redelivery of the same message is dropped by the claim.
	duplicate := *event
	h.handle(t, &duplicate)
	assert.Len(t, h.chat.texts(), before)
}

func TestNormalizeBotMessage(t *testing.T) {
	event := &platform.Event{BotID: "B9", Username: "other bot, v2."}
	normalizeBotMessage(event)
	assert.Equal(t, "B9otherbotv2", event.User)

	// Events with a user id are untouched.
	event = &platform.Event{User: "U1", BotID: "B9"}
	normalizeBotMessage(event)
	assert.Equal(t, "U1", event.User)
}

func TestIsDM(t *testing.T) {
	assert.True(t, isDM(&platform.Event{Event: platform.EventDirectMessage}))
	assert.False(t, isDM(&platform.Event{Event: platform.EventAmbient, Channel: "C1"}))
	assert.True(t, isDM(&platform.Event{Type: platform.TypeReactionAdded, Item: &platform.Item{Channel: "D1"}}))
	assert.False(t, isDM(&platform.Event{Type: platform.TypeReactionAdded, Item: &platform.Item{Channel: "C1"}}))
}
