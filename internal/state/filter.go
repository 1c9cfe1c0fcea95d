package state

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MatchPaths keeps the rows whose path fuzzily matches pattern, best
// matches first. An empty pattern returns rows unchanged.
func MatchPaths(rows []DigestRow, pattern string) []DigestRow {
	if pattern == "" {
		return rows
	}
	paths := make([]string, len(rows))
	for i, r := range rows {
		paths[i] = r.Path
	}
	ranks := fuzzy.RankFindFold(pattern, paths)
	sort.Stable(ranks)
	out := make([]DigestRow, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, rows[r.OriginalIndex])
	}
	return out
}
