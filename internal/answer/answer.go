// ABOUTME: Tiered answer resolution: pick a tier, format single or multi-choice
// ABOUTME: Pure function of the tier results; no I/O, no clock, no store

package answer

import (
	"fmt"
	"strings"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
)

// maxChoices is how many hits a multi-choice list displays. Choices are
// labeled a..z, so the alphabet is the cap.
const maxChoices = 26

// Meta carries the chosen tier's hits back to the caller, which uses
// Total to decide single-vs-multi reporting and keeps Hits around for
// later selection by reply or letter.
type Meta struct {
	Hits  []search.Hit
	Total int
}

// Result is a resolved answer: the outbound response plus the metadata
// recorded on the session event.
type Result struct {
	Response platform.Response
	Meta     Meta
}

// Empty reports whether resolution produced nothing, meaning no tier
// had results and the caller should run the no-result path instead.
func (r Result) Empty() bool {
	return r.Response.Text == ""
}

// Resolve picks the best tier and formats it.
//
// Tier 2 is the pivot: a large tier-2 total means the query was broad,
// so a precise tier-1 match (if any) is preferred over the flood. A
// small tier-2 total is specific enough to use directly. Tier 3 is the
// last resort and always carries the escalation hint.
func Resolve(tiers [3]search.Tier, summon string) Result {
	tier1, tier2, tier3 := tiers[0], tiers[1], tiers[2]

	var res Result
	switch {
	case tier2.Total > 5:
		switch {
		case tier1.Total == 1:
			res = singleResult(tier1)
		case tier1.Total > 0:
			res = multipleResults(tier1, summon)
		default:
			res = multipleResults(tier2, summon)
		}
	case tier2.Total >= 1:
		if tier2.Total == 1 {
			res = singleResult(tier2)
		} else {
			res = multipleResults(tier2, summon)
		}
	case tier3.Total > 0:
		res = lastResortResults(tier3, summon)
	}

	res.Response.LinkNames = true
	return res
}

// FormatSingle renders one hit as a direct answer: bolded title, then
// the body verbatim.
func FormatSingle(hit search.Hit) string {
	return fmt.Sprintf("*%s*\n%s", hit.Title, hit.Body)
}

func singleResult(tier search.Tier) Result {
	return Result{
		Response: platform.Response{
			Text: FormatSingle(tier.Hits[0]),
			// Empty (non-nil) attachments force web API delivery so the
			// feedback reactions can find the message.
			Attachments: []platform.Attachment{},
		},
		Meta: Meta{Hits: tier.Hits, Total: 1},
	}
}

func multipleResults(tier search.Tier, summon string) Result {
	text := fmt.Sprintf("I found %d results. Which one do you want to see?", tier.Total)
	escalation := ""
	if tier.Total > 5 {
		escalation = fmt.Sprintf("\n_If you don't see what you're looking for, try a different query to narrow down the results, or type `%shuman` if you want me to ping someone who can help._", summon)
	}
	if tier.Total > maxChoices {
		text = fmt.Sprintf("I found %d results; here are the first %d. Which one do you want to see?", tier.Total, maxChoices)
	}
	return Result{
		Response: platform.Response{
			Text:        text,
			Attachments: []platform.Attachment{choicesAttachment(tier.Hits, escalation)},
		},
		Meta: Meta{Hits: tier.Hits, Total: len(tier.Hits)},
	}
}

func lastResortResults(tier search.Tier, summon string) Result {
	if tier.Total == 1 {
		return Result{
			Response: platform.Response{
				Text:        "I couldn't find exactly what you were looking for, but here's the closest match:\n" + FormatSingle(tier.Hits[0]),
				Attachments: []platform.Attachment{},
			},
			Meta: Meta{Hits: tier.Hits, Total: 1},
		}
	}

	cap := tier.Total
	if cap > maxChoices {
		cap = maxChoices
	}
	text := fmt.Sprintf("I couldn't find exactly what you were looking for, but here's the %d closest matches. Which one do you want to see?", cap)
	if tier.Total > maxChoices {
		text = fmt.Sprintf("I couldn't find exactly what you were looking for, but here's the closest %d of %d matches. Which one do you want to see?", cap, tier.Total)
	}
	escalation := fmt.Sprintf("\n_If you don't see what you're looking for, try a different query to see if I can do better, or type `%shuman` if you want me to ping someone who can help._", summon)
	return Result{
		Response: platform.Response{
			Text:        text,
			Attachments: []platform.Attachment{choicesAttachment(tier.Hits, escalation)},
		},
		Meta: Meta{Hits: tier.Hits, Total: len(tier.Hits)},
	}
}

// choicesAttachment renders the lettered pick list. The fallback is the
// same content stripped of markdown for clients that can't render it.
func choicesAttachment(hits []search.Hit, escalation string) platform.Attachment {
	lines := make([]string, 0, maxChoices+1)
	letter := 'a'
	for i, hit := range hits {
		if i >= maxChoices {
			break
		}
		lines = append(lines, fmt.Sprintf("_type_ `%c` _for_ *%s*", letter, hit.Title))
		letter++
	}
	if escalation != "" {
		lines = append(lines, escalation)
	}
	content := strings.Join(lines, "\n")
	return platform.Attachment{
		Fallback:   PlainText(content),
		Text:       content,
		MarkdownIn: []string{"text"},
	}
}
