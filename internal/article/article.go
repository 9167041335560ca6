package article

import (
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Article is a single harvested feed item awaiting a posting decision.
// ID is the normalized form of Link; two articles are the same entity
// iff their IDs match.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Published   time.Time `json:"published"`
	Description string    `json:"description"`
}

// New builds an Article with its ID derived from the link.
func New(title, link, source, description string, published time.Time) Article {
	return Article{
		ID:          NormalizeLink(link),
		Title:       title,
		Link:        link,
		Source:      source,
		Published:   published,
		Description: description,
	}
}

// trackingParams are query parameters that carry no identity, only
// campaign/referrer tracking. They are stripped during normalization so
// the same story shared through different channels dedups to one entry.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"ref":     true,
	"ref_src": true,
	"source":  true,
	"cmpid":   true,
	"ocid":    true,
	"smid":    true,
	"s":       true,
	"mc_cid":  true,
	"mc_eid":  true,
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	return trackingParams[k]
}

// NormalizeLink canonicalizes a URL: lowercase scheme and host, fragment
// removed, trailing slash removed, tracking parameters stripped, remaining
// query parameters sorted by key. Idempotent. An unparsable link falls back
// to its trimmed raw form so identity still works.
func NormalizeLink(link string) string {
	raw := strings.TrimSpace(link)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			if isTrackingParam(k) {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}

	return u.String()
}

// Domain returns the article host with a leading "www." stripped,
// the form authority weights are keyed by.
func Domain(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// stopWords are common words ignored by the tokenizer. The set skews
// towards headline English since only titles and descriptions pass
// through it.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "for": true, "nor": true, "on": true, "in": true,
	"at": true, "to": true, "from": true, "by": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "it": true, "its": true, "this": true,
	"that": true, "these": true, "those": true, "as": true, "new": true,
	"now": true, "will": true, "has": true, "have": true, "had": true,
	"you": true, "your": true, "we": true, "our": true, "they": true,
	"their": true, "he": true, "she": true, "his": true, "her": true,
	"not": true, "no": true, "so": true, "if": true, "then": true,
	"than": true, "too": true, "can": true, "could": true, "would": true,
	"should": true, "may": true, "might": true, "just": true,
	"about": true, "into": true, "over": true, "after": true,
	"before": true, "up": true, "down": true, "out": true, "off": true,
	"more": true, "most": true, "all": true, "any": true, "today": true,
	"says": true, "said": true, "how": true, "what": true, "when": true,
	"why": true, "who": true, "get": true, "gets": true, "here": true,
}

// SignificantWords tokenizes text into a set of lowercase words with
// punctuation stripped, stop-words and single-character tokens removed.
// Both the scorer's learned-bias lookup and the duplicate detector use
// the same set so a rejection and a similarity check see the same words.
func SignificantWords(text string) map[string]bool {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	words := make(map[string]bool)
	for _, w := range strings.Fields(b.String()) {
		if len([]rune(w)) <= 1 || stopWords[w] {
			continue
		}
		words[w] = true
	}
	return words
}
