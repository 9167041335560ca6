// Package scoring computes the relevance of one article against the
// configured keyword and authority weights plus any learned bias. All
// functions are pure; identical inputs always produce identical output.
package scoring

import (
	"strconv"
	"strings"
	"time"

	"feedposter/internal/article"
)

// Breakdown is the per-component result of scoring one article.
// Total is always the sum of the other five fields.
type Breakdown struct {
	Base                int `json:"base"`
	TitleBonus          int `json:"title_bonus"`
	RecencyBonus        int `json:"recency_bonus"`
	AuthorityAdjustment int `json:"authority_adjustment"`
	LearnedBias         int `json:"learned_bias"`
	Total               int `json:"total"`
}

// parseKeyword splits a "keyword" or "keyword: weight" config entry.
// A missing or unparsable weight defaults to 1. The keyword itself is
// lowercased and trimmed.
func parseKeyword(entry string) (string, int) {
	keyword := entry
	weight := 1
	if idx := strings.LastIndex(entry, ":"); idx >= 0 {
		if w, err := strconv.Atoi(strings.TrimSpace(entry[idx+1:])); err == nil {
			keyword = entry[:idx]
			weight = w
		}
	}
	return strings.ToLower(strings.TrimSpace(keyword)), weight
}

// BuildKeywordWeights merges the inclusion and exclusion keyword lists
// into one signed weight map. Inclusion entries contribute |weight|,
// exclusion entries contribute -|weight|; a keyword present in both
// lists ends up with the exclusion weight.
func BuildKeywordWeights(inclusion, exclusion []string) map[string]int {
	weights := make(map[string]int, len(inclusion)+len(exclusion))
	for _, entry := range inclusion {
		k, w := parseKeyword(entry)
		if k == "" {
			continue
		}
		if w < 0 {
			w = -w
		}
		weights[k] = w
	}
	for _, entry := range exclusion {
		k, w := parseKeyword(entry)
		if k == "" {
			continue
		}
		if w < 0 {
			w = -w
		}
		weights[k] = -w
	}
	return weights
}

// recencyBonus is a step function of article age.
func recencyBonus(published, now time.Time) int {
	if published.IsZero() {
		return 0
	}
	age := now.Sub(published)
	switch {
	case age <= 2*time.Hour:
		return 5
	case age <= 6*time.Hour:
		return 3
	case age <= 12*time.Hour:
		return 1
	}
	return 0
}

// Score computes the relevance breakdown for one article.
//
// Base sums the weight of every keyword appearing case-insensitively in
// the title or description (once per keyword). Each positive keyword
// matched in the title additionally earns ceil(weight/2) as title bonus;
// negative keywords never do. biasMap may be nil when adaptive learning
// is disabled. now is injected so callers and tests get deterministic
// recency.
func Score(a article.Article, keywordWeights map[string]int, authorityWeights map[string]int, biasMap map[string]int, now time.Time) Breakdown {
	title := strings.ToLower(a.Title)
	description := strings.ToLower(a.Description)

	var bd Breakdown
	for keyword, weight := range keywordWeights {
		inTitle := strings.Contains(title, keyword)
		if !inTitle && !strings.Contains(description, keyword) {
			continue
		}
		bd.Base += weight
		if inTitle && weight > 0 {
			bd.TitleBonus += (weight + 1) / 2
		}
	}

	bd.RecencyBonus = recencyBonus(a.Published, now)
	bd.AuthorityAdjustment = authorityWeights[article.Domain(a.Link)]

	if biasMap != nil {
		for word := range article.SignificantWords(a.Title) {
			bd.LearnedBias += biasMap[word]
		}
	}

	bd.Total = bd.Base + bd.TitleBonus + bd.RecencyBonus + bd.AuthorityAdjustment + bd.LearnedBias
	return bd
}
