// ABOUTME: Tiered search types and the Searcher collaborator interface
// ABOUTME: Three confidence tiers: strict, relaxed, fuzzy

package search

import (
	"context"
	"time"
)

// Hit is a single ranked search result.
type Hit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Tier is one confidence bucket of results. Total is the backend's
// reported match count, which can exceed len(Hits) when results are capped.
type Tier struct {
	Hits  []Hit `json:"hits"`
	Total int   `json:"total"`
}

// Tier indexes into a [3]Tier result set.
const (
	TierStrict  = 0
	TierRelaxed = 1
	TierFuzzy   = 2
)

// Options controls a single search call.
type Options struct {
	Size    int           // maximum hits per tier
	Timeout time.Duration // per-attempt budget
}

// Searcher answers a query with three tiers of ranked hits.
type Searcher interface {
	Search(ctx context.Context, teamID, query string, opts Options) ([3]Tier, error)
}

// HasResults reports whether any tier matched anything.
func HasResults(tiers [3]Tier) bool {
	for _, t := range tiers {
		if t.Total > 0 {
			return true
		}
	}
	return false
}

// FromHit builds a result set whose three tiers all collapse to the one
// given hit. Used when a user picks an entry from a multi-result list and
// the choice is replayed through the normal result handling path.
func FromHit(hit Hit) [3]Tier {
	var tiers [3]Tier
	for i := range tiers {
		tiers[i] = Tier{Hits: []Hit{hit}, Total: 1}
	}
	return tiers
}
