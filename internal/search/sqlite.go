// ABOUTME: SQLite-backed tiered search over the replies table
// ABOUTME: Tier 1 is an exact phrase match, tier 2 requires all terms, tier 3 any term

package search

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// SQLiteSearcher implements Searcher over the replies table of the main
// database. Matching is case-insensitive substring matching in three
// tiers of decreasing strictness.
type SQLiteSearcher struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSearcher creates a searcher over an already-open database.
func NewSQLiteSearcher(db *sql.DB, logger *slog.Logger) *SQLiteSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteSearcher{
		db:     db,
		logger: logger.With("component", "search"),
	}
}

// Search runs all three tiers for the query. Tiers are evaluated
// independently; in practice each tier's matches are a superset of the
// previous one's.
func (s *SQLiteSearcher) Search(ctx context.Context, teamID, query string, opts Options) ([3]Tier, error) {
	if opts.Size <= 0 {
		opts.Size = 26
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	terms := strings.Fields(strings.ToLower(query))

	var tiers [3]Tier
	queries := [3]struct {
		clause string
		args   []any
	}{
		s.phraseClause(query),
		s.termsClause(terms, " AND "),
		s.termsClause(terms, " OR "),
	}

	for i, q := range queries {
		tier, err := s.runTier(ctx, teamID, q.clause, q.args, opts.Size)
		if err != nil {
			return [3]Tier{}, fmt.Errorf("search tier %d: %w", i+1, err)
		}
		tiers[i] = tier
	}
	return tiers, nil
}

func (s *SQLiteSearcher) phraseClause(query string) struct {
	clause string
	args   []any
} {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	return struct {
		clause string
		args   []any
	}{
		clause: "(lower(title) LIKE ? OR lower(body) LIKE ?)",
		args:   []any{pattern, pattern},
	}
}

func (s *SQLiteSearcher) termsClause(terms []string, joiner string) struct {
	clause string
	args   []any
} {
	if len(terms) == 0 {
		// An empty query matches nothing.
		return struct {
			clause string
			args   []any
		}{clause: "0 = 1"}
	}
	parts := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)*2)
	for _, term := range terms {
		pattern := "%" + term + "%"
		parts = append(parts, "(lower(title) LIKE ? OR lower(body) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	return struct {
		clause string
		args   []any
	}{clause: "(" + strings.Join(parts, joiner) + ")", args: args}
}

func (s *SQLiteSearcher) runTier(ctx context.Context, teamID, clause string, args []any, size int) (Tier, error) {
	countQuery := "SELECT COUNT(*) FROM replies WHERE team_id = ? AND " + clause
	countArgs := append([]any{teamID}, args...)

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return Tier{}, fmt.Errorf("counting matches: %w", err)
	}

	query := "SELECT id, title, body FROM replies WHERE team_id = ? AND " + clause +
		" ORDER BY length(title), title LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, append(countArgs, size)...)
	if err != nil {
		return Tier{}, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	tier := Tier{Total: total}
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.ID, &hit.Title, &hit.Body); err != nil {
			return Tier{}, fmt.Errorf("scanning hit: %w", err)
		}
		tier.Hits = append(tier.Hits, hit)
	}
	return tier, rows.Err()
}
