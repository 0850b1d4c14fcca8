package dedup

import (
	"strings"
	"unicode"
)

// Ratio computes a sequence-similarity ratio in [0,1] between two strings:
// twice the number of matched characters over the total length, with matches
// found greedily by longest common block. Equivalent strings score 1.0.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	ra, rb := []rune(a), []rune(b)
	matched := matchingRunes(ra, rb)
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingRunes counts matched runes by recursively splitting around the
// longest common block, the way difflib-style matchers do.
func matchingRunes(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingRunes(a[:ai], b[:bi])
	total += matchingRunes(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch finds the longest block common to a and b, preferring the
// earliest occurrence in a.
func longestMatch(a, b []rune) (ai, bi, size int) {
	// Index positions of each rune in b for quick lookup.
	positions := make(map[rune][]int, len(b))
	for i, r := range b {
		positions[r] = append(positions[r], i)
	}

	// lengths[j] is the length of the match ending at a[i-1], b[j-1].
	lengths := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int, len(lengths))
		for _, j := range positions[r] {
			k := lengths[j-1] + 1
			next[j] = k
			if k > size {
				ai, bi, size = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return ai, bi, size
}

// normalizeText lowercases, strips punctuation, and collapses whitespace for
// fuzzy comparison.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
