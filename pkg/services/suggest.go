package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// minSuggestScore is the lowest similarity accepted as a suggestion.
const minSuggestScore = 0.75

type suggestCandidate struct {
	target    string
	targetPos int
	column    string
	columnPos int
	score     float64
}

// SuggestMapping proposes sources for targets that have no entry in current,
// matching names case- and separator-insensitively with an edit-distance
// fallback. Columns already bound in current are never proposed, and each
// column is proposed at most once.
func SuggestMapping(schema *models.TargetSchema, columns []string, current models.FieldMapping) []models.MappingPair {
	used := make(map[string]bool, len(current))
	for _, source := range current {
		if source != models.IgnoreSource {
			used[source] = true
		}
	}

	var candidates []suggestCandidate
	for ti, target := range schema.Names() {
		if _, set := current[target]; set {
			continue
		}
		nt := normalizeName(target)
		for ci, column := range columns {
			if used[column] {
				continue
			}
			if score := nameSimilarity(nt, normalizeName(column)); score >= minSuggestScore {
				candidates = append(candidates, suggestCandidate{target, ti, column, ci, score})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.targetPos != b.targetPos {
			return a.targetPos < b.targetPos
		}
		return a.columnPos < b.columnPos
	})

	assigned := make(map[string]string)
	for _, c := range candidates {
		if _, done := assigned[c.target]; done || used[c.column] {
			continue
		}
		assigned[c.target] = c.column
		used[c.column] = true
	}

	return models.FieldMapping(assigned).Pairs(schema.Names())
}

// normalizeName folds case and drops everything but letters and digits, so
// "E-mail Address", "email_address" and "EmailAddress" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// nameSimilarity scores two normalized names in [0, 1].
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if len(a) >= 4 && len(b) >= 4 && (strings.HasPrefix(b, a) || strings.HasPrefix(a, b)) {
		return 0.9
	}

	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the edit distance between two strings using two rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return len(rb)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}
