package util

import (
	"sort"
	"strings"
)

// maxSuggestDistance is the largest edit distance SuggestSimilar accepts.
const maxSuggestDistance = 2

// LevenshteinDistance returns the number of single-rune edits (insertions,
// deletions, substitutions) needed to turn a into b. Case-sensitive.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// SuggestSimilar returns up to limit candidates within a small edit distance
// of input, closest first. Comparison ignores case. Returns nil when nothing
// is close.
func SuggestSimilar(input string, candidates []string, limit int) []string {
	if input == "" || len(candidates) == 0 || limit <= 0 {
		return nil
	}

	type match struct {
		name string
		dist int
	}
	lower := strings.ToLower(input)
	var matches []match
	for _, c := range candidates {
		if d := LevenshteinDistance(lower, strings.ToLower(c)); d <= maxSuggestDistance {
			matches = append(matches, match{c, d})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].dist < matches[j].dist
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}
