// ABOUTME: Event pipeline: claim, normalize, categorize, lock, dispatch
// ABOUTME: The engine owns every collaborator a flow needs to run

package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/mutex"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
	"github.com/2389/replybot/internal/track"
)

// SearchSettings control the answer flow's search calls.
type SearchSettings struct {
	Size           int           // hits requested per tier
	Retries        int           // retries after the first attempt
	InitialTimeout time.Duration // first attempt budget
	RetryStep      time.Duration // added to the budget per retry
}

// DefaultSearchSettings mirror the production search policy.
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		Size:           26,
		Retries:        3,
		InitialTimeout: 500 * time.Millisecond,
		RetryStep:      1500 * time.Millisecond,
	}
}

// Config wires an Engine.
type Config struct {
	Chat       platform.Chat
	Store      store.Store
	Sessions   *session.Manager
	Locker     mutex.Locker
	Runner     *flow.Runner
	Tracker    *track.Tracker
	Searcher   search.Searcher
	Identities platform.Identities

	// ClaimTTL is the lease on a message claim. A claim is never
	// released; it protects against sibling processes for its lifetime.
	ClaimTTL time.Duration

	Search SearchSettings
	Logger *slog.Logger
}

// Engine processes inbound chat events through the session middleware
// and the flow registry.
type Engine struct {
	chat     platform.Chat
	store    store.Store
	sessions *session.Manager
	locker   mutex.Locker
	runner   *flow.Runner
	tracker  *track.Tracker
	searcher search.Searcher
	registry *flow.Registry
	logger   *slog.Logger
	ids      platform.Identities
	claimTTL time.Duration
	search   SearchSettings
}

// New creates an engine with the fixed flow priority order.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClaimTTL == 0 {
		cfg.ClaimTTL = 60 * time.Second
	}
	zero := SearchSettings{}
	if cfg.Search == zero {
		cfg.Search = DefaultSearchSettings()
	}

	e := &Engine{
		chat:     cfg.Chat,
		store:    cfg.Store,
		sessions: cfg.Sessions,
		locker:   cfg.Locker,
		runner:   cfg.Runner,
		tracker:  cfg.Tracker,
		searcher: cfg.Searcher,
		logger:   logger.With("component", "bot"),
		ids:      cfg.Identities,
		claimTTL: cfg.ClaimTTL,
		search:   cfg.Search,
	}
	e.registry = flow.NewRegistry(logger,
		e.greetFlow(),
		e.helpFlow(),
		e.welcomeFlow(),
		e.welcomeAdminFlow(),
		e.humanFlow(),
		e.inferFlow(),
		e.feedbackFlow(),
	)
	return e
}

// HandleEvent runs one inbound event through the full pipeline. The
// returned error covers infrastructure failures only; flow errors are
// handled inside the dispatch chain.
func (e *Engine) HandleEvent(ctx context.Context, event *platform.Event) error {
	normalizeBotMessage(event)

	if event.TS != "" {
		claimed, err := e.claimMessage(ctx, event)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
	}

	pctx := session.NewContext(e.ids)
	pctx.DM = isDM(event)
	pctx.Stripped = flow.Strip(event.Text, e.ids.BotID)

	return e.sessions.Handle(ctx, pctx, event, func(ctx context.Context) error {
		if !e.registry.Dispatch(ctx, pctx, event) {
			e.logger.Debug("no flow matched", "event", event.Event, "type", event.Type)
		}
		return nil
	})
}

// claimMessage takes the cross-process claim on a message so only one
// bot process handles it. The claim is left to expire on its own.
func (e *Engine) claimMessage(ctx context.Context, event *platform.Event) (bool, error) {
	channel := event.Channel
	if channel == "" && event.Item != nil {
		channel = event.Item.Channel
	}
	key := mutex.MessageKey(e.ids.BotID, channel, event.TS)
	if _, err := e.locker.Lock(ctx, key, e.claimTTL); err != nil {
		if errors.Is(err, mutex.ErrLock) {
			e.logger.Debug("another process claimed the message", "channel", channel, "ts", event.TS)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var usernameJunk = regexp.MustCompile(`[ ,.]`)

// normalizeBotMessage gives messages posted by other bots a synthetic
// user id so the rest of the pipeline can treat them like user messages.
func normalizeBotMessage(event *platform.Event) {
	if event.User != "" || event.BotID == "" {
		return
	}
	event.User = event.BotID
	if event.Username != "" {
		event.User += usernameJunk.ReplaceAllString(event.Username, "")
	}
}

// isDM reports whether the event happened in a direct-message channel,
// including reactions whose referenced message lives in one.
func isDM(event *platform.Event) bool {
	if strings.HasPrefix(event.Event, "direct_message") {
		return true
	}
	return event.Item != nil && strings.HasPrefix(event.Item.Channel, "D")
}
