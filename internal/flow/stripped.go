// ABOUTME: Stripped-text utterance matching for flow predicates
// ABOUTME: Lowercased text minus the bot mention, punctuation, and whitespace

package flow

import (
	"regexp"
	"strings"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
)

var punctuation = regexp.MustCompile("[.,/#!$?%^&*:{}=\\-_`~()\\s]")

// Strip normalizes message text for utterance comparison: the bot's own
// mention token is removed, then punctuation and whitespace, then the
// result is lowercased.
func Strip(text, botID string) string {
	s := strings.ReplaceAll(text, "<@"+botID+">", "")
	s = punctuation.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

// Pattern matches a stripped utterance either exactly or by regexp.
type Pattern struct {
	exact string
	re    *regexp.Regexp
}

// Exact builds a pattern matching the stripped text exactly. The empty
// string is a valid pattern: it matches a message that was nothing but a
// mention.
func Exact(s string) Pattern {
	return Pattern{exact: s}
}

// Regex builds a regexp pattern. The expression must be valid; patterns
// are package-level constants.
func Regex(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

func (p Pattern) matches(stripped string) bool {
	if p.re != nil {
		return p.re.MatchString(stripped)
	}
	return p.exact == stripped
}

// Matches reports whether the event's stripped text matches any pattern.
// Messages with a subtype other than bot_message never match.
func Matches(patterns []Pattern, pctx *session.Context, event *platform.Event) bool {
	if event.Subtype != "" && event.Subtype != "bot_message" {
		return false
	}
	for _, p := range patterns {
		if p.matches(pctx.Stripped) {
			return true
		}
	}
	return false
}
