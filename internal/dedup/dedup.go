// Package dedup flags articles whose titles significantly overlap with
// titles already posted, so near-identical stories from different
// sources are not submitted twice.
package dedup

import "feedposter/internal/article"

// DefaultThreshold is the shared-word ratio at which two titles count
// as the same story.
const DefaultThreshold = 0.5

// Similarity returns the Jaccard ratio of the significant-word sets of
// two titles: |intersection| / |union|, 0 when the union is empty.
// Always within [0, 1]; a non-empty title compared to itself yields 1.
func Similarity(a, b string) float64 {
	return setSimilarity(article.SignificantWords(a), article.SignificantWords(b))
}

func setSimilarity(a, b map[string]bool) float64 {
	union := len(b)
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// FindDuplicates returns the IDs of candidates whose title is at least
// threshold-similar to any of the history titles, in candidate order.
// The first history title over the threshold decides; no best match is
// searched. Inputs are not mutated. Callers truncate historyTitles to
// the window they care about.
func FindDuplicates(candidates []article.Article, historyTitles []string, threshold float64) []string {
	historyWords := make([]map[string]bool, len(historyTitles))
	for i, t := range historyTitles {
		historyWords[i] = article.SignificantWords(t)
	}

	var duplicates []string
	for _, c := range candidates {
		words := article.SignificantWords(c.Title)
		for _, hw := range historyWords {
			if setSimilarity(words, hw) >= threshold {
				duplicates = append(duplicates, c.ID)
				break
			}
		}
	}
	return duplicates
}
