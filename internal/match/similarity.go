package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)
var whitespaceRuns = regexp.MustCompile(`\s+`)

// NormalizeString prepares a free-text description for comparison: lowercase,
// accents stripped via NFD decomposition, anything outside [a-z0-9\s] replaced
// with a space, whitespace collapsed.
func NormalizeString(s string) string {
	s = strings.ToLower(s)

	// Decompose accented characters and drop the combining marks.
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	s = nonAlphanumeric.ReplaceAllString(b.String(), " ")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// LevenshteinDistance computes the classic edit distance between two strings,
// counting insertions, deletions and substitutions at cost 1 each.
func LevenshteinDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Single-row DP over b.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// SimilarityRatio maps edit distance onto [0,1]: 1 is identical, 0 shares
// nothing. Two empty strings are identical.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}

	return 1 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// FuzzySimilarity scores how alike two descriptions are on [0,1]. When
// normalize is true both inputs go through NormalizeString first. On top of
// the edit-distance ratio it grants one of two bonuses: substring containment
// (proportional to the length ratio, up to 0.3) or, failing that, a shared
// significant first word (flat 0.15). The substring check short-circuits the
// first-word check, so at most one bonus applies.
func FuzzySimilarity(a, b string, normalize bool) float64 {
	if normalize {
		a = NormalizeString(a)
		b = NormalizeString(b)
	}

	if a == b {
		return 1
	}

	ratio := SimilarityRatio(a, b)

	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}

	if len(shorter) >= 3 && strings.Contains(longer, shorter) {
		bonus := float64(len(shorter)) / float64(len(longer)) * 0.3
		return clamp01(ratio + bonus)
	}

	// Establishment name often precedes a location suffix; reward a shared
	// significant first word.
	firstA, _, _ := strings.Cut(a, " ")
	firstB, _, _ := strings.Cut(b, " ")
	if firstA != "" && firstA == firstB && len(firstA) >= 4 {
		return clamp01(ratio + 0.15)
	}

	return clamp01(ratio)
}

// AreSimilar reports whether two descriptions clear the given similarity
// threshold after normalization.
func AreSimilar(a, b string, threshold float64) bool {
	return FuzzySimilarity(a, b, true) >= threshold
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
