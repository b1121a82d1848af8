package store

import (
	"sort"

	"github.com/gosimple/slug"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

// SearchKey normalizes a name or query for typeahead matching
// ("Re:Zero kara Hajimeru" → "re-zero-kara-hajimeru").
func SearchKey(s string) string { return slug.Make(s) }

// SortStandings orders stats for the leaderboard: wins desc, total tries asc,
// then user id for a stable order among full ties.
func SortStandings(st []game.Stats) {
	sort.SliceStable(st, func(i, j int) bool {
		a, b := st[i], st[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.TotalTries != b.TotalTries {
			return a.TotalTries < b.TotalTries
		}
		return a.UserID < b.UserID
	})
}

// SortByPopularity puts ranked candidates first (rank 1 on top), unranked last,
// then by name.
func SortByPopularity(cs []game.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		ar, br := a.PopularityRank > 0, b.PopularityRank > 0
		if ar != br {
			return ar
		}
		if a.PopularityRank != b.PopularityRank {
			return a.PopularityRank < b.PopularityRank
		}
		return a.Name < b.Name
	})
}
