// ABOUTME: Parsing a user's pick from a multi-choice result list
// ABOUTME: Accepts 1-based numbers and the letters a-z

package answer

import (
	"strconv"
	"strings"
)

// ParseChoice interprets text as a selection from a list of available
// hits: "1" and "a" both mean the first. Returns false when the text is
// not a selection or the selection is out of range.
func ParseChoice(text string, available int) (int, bool) {
	text = strings.ToLower(strings.TrimSpace(text))

	index := -1
	if n, err := strconv.Atoi(text); err == nil {
		index = n - 1
	} else if len(text) == 1 {
		c := text[0]
		if c >= 'a' && c <= 'z' {
			index = int(c - 'a')
		}
	}

	if index < 0 || index >= available {
		return 0, false
	}
	return index, true
}
