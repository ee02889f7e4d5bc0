// Package similarity implements the two similarity functions the matching
// core is built on: product-name similarity and batch-number similarity.
// Both are pure functions over their inputs. The Engine type layers an
// optional embedding-backed semantic path on top of the lexical one,
// degrading to lexical whenever the semantic backend is unavailable.
package similarity

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// HighSimilarityThreshold is the score above which two product names are
// considered the same product for gating purposes.
const HighSimilarityThreshold = 0.7

// shortQueryLimit guards against false positives from very short queries:
// below this length the final score is halved.
const shortQueryLimit = 4

var romanDigits = [][2]string{
	{"1", "i"},
	{"2", "ii"},
	{"3", "iii"},
	{"4", "iv"},
	{"5", "v"},
}

// ratio is the Levenshtein similarity of two strings in [0,1].
func ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(maxLen)
}

// variants generates common orthographic rewritings of a normalised product
// name: space removal, space to hyphen, and digit/roman-numeral swaps for
// 1 through 5. The input itself is always the first element.
func variants(s string) []string {
	out := []string{s}
	if strings.Contains(s, " ") {
		out = append(out,
			strings.ReplaceAll(s, " ", ""),
			strings.ReplaceAll(s, " ", "-"),
		)
	}
	for _, pair := range romanDigits {
		digit, roman := pair[0], pair[1]
		if containsToken(s, digit) {
			out = append(out, replaceToken(s, digit, roman))
		}
		if containsToken(s, roman) {
			out = append(out, replaceToken(s, roman, digit))
		}
	}
	return out
}

// containsToken reports whether tok appears in s as a whole word.
func containsToken(s, tok string) bool {
	for _, f := range strings.Fields(s) {
		if f == tok {
			return true
		}
	}
	return false
}

// replaceToken replaces whole-word occurrences of old with new.
func replaceToken(s, old, new string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if f == old {
			fields[i] = new
		}
	}
	return strings.Join(fields, " ")
}

// NameSimilarity returns the product-name similarity of query and candidate
// in [0,1]. Pure function, safe for concurrent use.
//
// Scoring: the base is Levenshtein similarity; literal substring containment
// boosts the score to at least 0.9; orthographic variants of both sides are
// generated and the maximum pairwise score wins. Queries shorter than four
// characters have their final score halved so that trivially short inputs
// cannot claim a match.
func NameSimilarity(query, candidate string) float64 {
	q := normalizeName(query)
	c := normalizeName(candidate)
	if q == "" || c == "" {
		return 0.0
	}

	best := 0.0
	for _, qv := range variants(q) {
		for _, cv := range variants(c) {
			s := ratio(qv, cv)
			if strings.Contains(cv, qv) || strings.Contains(qv, cv) {
				if s < 0.9 {
					s = 0.9
				}
			}
			if s > best {
				best = s
			}
		}
	}

	if len(q) < shortQueryLimit {
		best *= 0.5
	}
	if best > 1.0 {
		best = 1.0
	}
	return best
}

// IsHighSimilarity reports whether a product-name similarity score clears
// the matching threshold.
func IsHighSimilarity(score float64) bool {
	return score > HighSimilarityThreshold
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
