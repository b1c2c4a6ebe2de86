// ABOUTME: Tests for analytics emission and the first-seen cache
// ABOUTME: Covers self filtering, first-seen marking, TTL, and eviction

package track

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/replybot/internal/platform"
)

func newTestTracker(t *testing.T) (*Tracker, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tracker := New(logger)
	t.Cleanup(tracker.Close)
	return tracker, &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		out = append(out, record)
	}
	return out
}

var trackIdentities = platform.Identities{BotID: "B1", TeamID: "T1", TeamName: "example"}

func userMessage(user string) *platform.Event {
	return &platform.Event{
		Type:    platform.TypeMessage,
		Event:   platform.EventDirectMessage,
		User:    user,
		Channel: "D1",
	}
}

func TestTracker_EmitsRecord(t *testing.T) {
	tracker, buf := newTestTracker(t)

	tracker.Greeting(trackIdentities, userMessage("U1"), true)

	logged := records(t, buf)
	require.Len(t, logged, 1)
	assert.Equal(t, "greeting", logged[0]["kind"])
	assert.Equal(t, "T1", logged[0]["team"])
	assert.Equal(t, "U1", logged[0]["user"])
	assert.Equal(t, true, logged[0]["dm"])
}

func TestTracker_SkipsSelfAndSystemUser(t *testing.T) {
	tracker, buf := newTestTracker(t)

	tracker.Greeting(trackIdentities, userMessage("B1"), true)
	tracker.Greeting(trackIdentities, userMessage(platform.SystemUserID), true)
	tracker.Greeting(trackIdentities, userMessage("uslackbot"), true)

	assert.Empty(t, records(t, buf))
}

func TestTracker_FirstSeenOnce(t *testing.T) {
	tracker, buf := newTestTracker(t)

	tracker.Greeting(trackIdentities, userMessage("U1"), true)
	tracker.Help(trackIdentities, userMessage("U1"), true)
	tracker.Greeting(trackIdentities, userMessage("U2"), true)

	logged := records(t, buf)
	require.Len(t, logged, 3)
	assert.Equal(t, true, logged[0]["first_seen"])
	_, again := logged[1]["first_seen"]
	assert.False(t, again, "second event for the same user is not first_seen")
	assert.Equal(t, true, logged[2]["first_seen"])
}

func TestTracker_KindSpecificAttrs(t *testing.T) {
	tracker, buf := newTestTracker(t)

	tracker.NoResults(trackIdentities, userMessage("U1"), false, "vacation policy")
	tracker.MultipleResults(trackIdentities, userMessage("U1"), false, 7)
	tracker.Escalation(trackIdentities, userMessage("U1"), true, false, true, 1)
	tracker.Feedback(trackIdentities, userMessage("U2"), true, false, true)

	logged := records(t, buf)
	require.Len(t, logged, 4)
	assert.Equal(t, "vacation policy", logged[0]["query"])
	assert.Equal(t, float64(7), logged[1]["total"])
	assert.Equal(t, true, logged[2]["admin"])
	assert.Equal(t, false, logged[3]["positive"])
	assert.Equal(t, true, logged[3]["responding"])
}

func TestSeenCache_CheckAndMark(t *testing.T) {
	cache := newSeenCache(time.Hour, 10)
	defer cache.close()

	assert.False(t, cache.checkAndMark("T1:U1"))
	assert.True(t, cache.checkAndMark("T1:U1"))
	assert.False(t, cache.checkAndMark("T1:U2"))
}

func TestSeenCache_ExpiredEntryRemarked(t *testing.T) {
	cache := newSeenCache(10*time.Millisecond, 10)
	defer cache.close()

	assert.False(t, cache.checkAndMark("T1:U1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.checkAndMark("T1:U1"))
	assert.True(t, cache.checkAndMark("T1:U1"))
}

func TestSeenCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := newSeenCache(time.Hour, 3)
	defer cache.close()

	for i := 0; i < 3; i++ {
		cache.checkAndMark(fmt.Sprintf("T1:U%d", i))
	}
	// A fourth key evicts U0, the oldest.
	cache.checkAndMark("T1:U3")

	assert.False(t, cache.checkAndMark("T1:U0"))
	assert.True(t, cache.checkAndMark("T1:U2"))
	assert.True(t, cache.checkAndMark("T1:U3"))
}

func TestSeenCache_CloseTwice(t *testing.T) {
	cache := newSeenCache(time.Hour, 10)
	cache.close()
	cache.close()
}
