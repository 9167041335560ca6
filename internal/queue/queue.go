// Package queue holds the merge logic for the bounded, deduplicated
// article queue. Merge is a pure transform over snapshots; the engine
// serializes calls around it.
package queue

import (
	"sort"

	"feedposter/internal/article"
)

// MaxSize caps the queue; a merge evicts the oldest entries beyond it.
const MaxSize = 50

// Merge folds freshly fetched articles into the current queue.
//
// Incoming articles whose ID is in excluded (posting history, current
// queue, user-removed links) are dropped. Survivors are concatenated in
// front of the current queue and deduplicated keeping the first
// occurrence. Because the engine's exclusion set always carries the
// current queue links, a re-fetched story never reaches the dedup and a
// queued article's metadata stays stable; the in-merge dedup decides
// between variants of one link within a single batch. The result is
// sorted newest-published-first and capped at MaxSize, evicting the
// oldest tail. Returns the merged queue and the net-new entry count
// versus the pre-merge queue.
func Merge(current, incoming []article.Article, excluded map[string]struct{}) ([]article.Article, int) {
	combined := make([]article.Article, 0, len(incoming)+len(current))
	for _, a := range incoming {
		if _, skip := excluded[a.ID]; skip {
			continue
		}
		combined = append(combined, a)
	}
	combined = append(combined, current...)

	seen := make(map[string]struct{}, len(combined))
	merged := combined[:0]
	for _, a := range combined {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Published.After(merged[j].Published)
	})

	if len(merged) > MaxSize {
		merged = merged[:MaxSize]
	}

	added := len(merged) - len(current)
	if added < 0 {
		added = 0
	}
	return merged, added
}

// Links returns the set of IDs currently in the queue.
func Links(q []article.Article) map[string]struct{} {
	links := make(map[string]struct{}, len(q))
	for _, a := range q {
		links[a.ID] = struct{}{}
	}
	return links
}
