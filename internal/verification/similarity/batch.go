package similarity

import "strings"

// batchFuzzyThreshold is stricter than the product-name threshold: batch
// numbers are short identifiers, so a small edit distance already means a
// different batch.
const batchFuzzyThreshold = 0.8

// proseMatchScore is returned when the extracted batch appears verbatim in
// the alert's full text rather than in its structured batch list. Some
// notices mention batches only in prose.
const proseMatchScore = 0.9

// BatchSimilarity returns the similarity of an extracted batch number
// against one alert batch in [0,1]. Pure function, safe for concurrent use.
//
// Exact case-insensitive equality scores 1.0. Otherwise the Levenshtein
// similarity counts only above a strict threshold. As a last resort a
// literal occurrence of the extracted batch anywhere in alertFullText scores
// 0.9. Everything else is 0.
func BatchSimilarity(extracted, alertBatch, alertFullText string) float64 {
	e := normalizeBatch(extracted)
	if e == "" {
		return 0.0
	}

	if a := normalizeBatch(alertBatch); a != "" {
		if e == a {
			return 1.0
		}
		if s := ratio(e, a); s >= batchFuzzyThreshold {
			return s
		}
	}

	if alertFullText != "" && len(e) >= 3 &&
		strings.Contains(strings.ToUpper(alertFullText), e) {
		return proseMatchScore
	}
	return 0.0
}

// BestBatchSimilarity scores an extracted batch against every batch of an
// alert and returns the best score with the alert batch that produced it.
func BestBatchSimilarity(extracted string, alertBatches []string, alertFullText string) (float64, string) {
	best := 0.0
	matched := ""
	for _, ab := range alertBatches {
		if s := BatchSimilarity(extracted, ab, ""); s > best {
			best = s
			matched = ab
		}
	}
	// Prose fallback only when no structured batch matched at all.
	if best == 0.0 {
		if s := BatchSimilarity(extracted, "", alertFullText); s > best {
			best = s
			matched = extracted
		}
	}
	return best, matched
}

func normalizeBatch(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
