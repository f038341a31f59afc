// Package resolver turns a free-text chat query into a club identity. Exact
// alias hits are answered locally; everything else goes through the remote club
// search with token-set fuzzy scoring. Near-ties are surfaced as ambiguous
// rather than silently picking the best-scoring club.
package resolver

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/stimodev/stimobot/alias"
	"github.com/stimodev/stimobot/proclubs"
)

// Kind classifies a resolution outcome.
type Kind int

const (
	// NotFound means no alias, no usable remote candidate.
	NotFound Kind = iota
	// Exact means a stored alias matched; no network call was made.
	Exact
	// Direct means the query was a bare numeric id; the name is unknown until stats are fetched.
	Direct
	// Remote means the fuzzy search produced a single clear winner.
	Remote
	// Ambiguous means several candidates scored within the tie band.
	Ambiguous
)

// Candidate is one scored result from the remote search.
type Candidate struct {
	ClubID string
	Name   string
	Score  int
}

// Resolution is the outcome of resolving a query.
type Resolution struct {
	Kind       Kind
	ClubID     string
	Name       string
	Candidates []Candidate // populated for Ambiguous
}

// Searcher is the remote lookup the resolver needs; satisfied by *proclubs.Client.
type Searcher interface {
	SearchClubs(ctx context.Context, name string) ([]proclubs.SearchResult, error)
}

type Resolver struct {
	Aliases  *alias.Store
	Search   Searcher
	MinScore int // candidates below this score are ignored
	Band     int // candidates within Band of the best are a tie
}

// maxCandidates bounds the ambiguous listing shown in chat.
const maxCandidates = 5

// Resolve maps a query to a club identity. Remote failures degrade to NotFound;
// this method never returns an error to the chat path.
func (r *Resolver) Resolve(ctx context.Context, query string) Resolution {
	query = strings.TrimSpace(query)
	if query == "" {
		return Resolution{Kind: NotFound}
	}
	normalized := alias.Normalize(query)

	if e, ok := r.Aliases.Lookup(normalized); ok {
		return Resolution{Kind: Exact, ClubID: e.ClubID, Name: e.Name}
	}

	if isNumeric(query) {
		return Resolution{Kind: Direct, ClubID: query}
	}

	results, err := r.Search.SearchClubs(ctx, query)
	if err != nil {
		slog.Warn("club search failed", slog.String("query", query), slog.Any("err", err))
		return Resolution{Kind: NotFound}
	}

	candidates := make([]Candidate, 0, len(results))
	for _, res := range results {
		score := fuzzy.TokenSetRatio(query, res.Name)
		if score < r.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{ClubID: res.ClubID, Name: res.Name, Score: score})
	}
	if len(candidates) == 0 {
		return Resolution{Kind: NotFound}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	best := candidates[0]
	tied := candidates[:1]
	for _, c := range candidates[1:] {
		if best.Score-c.Score <= r.Band {
			tied = append(tied, c)
		}
	}
	if len(tied) > 1 {
		if len(tied) > maxCandidates {
			tied = tied[:maxCandidates]
		}
		return Resolution{Kind: Ambiguous, Candidates: tied}
	}

	// Remember the winner so the next query for this club stays local.
	if _, known := r.Aliases.Get(best.ClubID); !known {
		if err := r.Aliases.Put(best.ClubID, best.Name); err != nil {
			slog.Warn("failed to persist club alias", slog.String("club_id", best.ClubID), slog.Any("err", err))
		}
	}
	return Resolution{Kind: Remote, ClubID: best.ClubID, Name: best.Name}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
