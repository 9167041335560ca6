// Package bias keeps the learned keyword penalties. Every manual
// rejection of a queued article pushes the significant words of its
// title further negative, so similar stories rank lower over time.
package bias

import "feedposter/internal/article"

// Map holds accumulated penalties per lowercase content word. The only
// producer is manual rejection, so values only ever go down.
type Map map[string]int

// RecordRejection decrements the penalty of every significant word in
// the rejected title by one. Absent words start at zero, so a first
// rejection sets them to -1. Returns the words that were touched.
func RecordRejection(m Map, title string) []string {
	words := article.SignificantWords(title)
	touched := make([]string, 0, len(words))
	for w := range words {
		m[w]--
		touched = append(touched, w)
	}
	return touched
}

// Clone returns an independent copy, nil in nil out.
func Clone(m Map) Map {
	if m == nil {
		return nil
	}
	c := make(Map, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
