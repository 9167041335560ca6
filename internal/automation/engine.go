// Package automation is the core of the bot: it owns the article
// queue, the posting history, the removed-link set, and the learned
// bias, and runs the fetch and post cycles the scheduler triggers.
// All shared state lives behind one mutex; cycles snapshot under the
// lock, do network work unlocked, and write back under the lock.
package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"feedposter/internal/article"
	"feedposter/internal/bias"
	"feedposter/internal/config"
	"feedposter/internal/dedup"
	"feedposter/internal/logger"
	"feedposter/internal/metrics"
	"feedposter/internal/publish"
	"feedposter/internal/queue"
	"feedposter/internal/scheduler"
	"feedposter/internal/scoring"
	"feedposter/internal/storage"
)

// SentinelAlreadySubmitted is recorded as the publish location when the
// endpoint reports the link was submitted before. The history entry
// stops the article from being retried forever.
const SentinelAlreadySubmitted = "already-submitted"

// duplicateHistoryWindow is how many recent history titles the semantic
// duplicate check compares against.
const duplicateHistoryWindow = 50

// Fetcher retrieves articles from the configured feeds. Failures are
// per-feed strings, never a hard error.
type Fetcher interface {
	Fetch(ctx context.Context, urls []string) ([]article.Article, []string)
}

// Publisher submits one link to the publishing endpoint.
type Publisher interface {
	Submit(ctx context.Context, token, destination, title, link, flairID string) (string, error)
}

// Store persists the four state collections across restarts.
type Store interface {
	SaveQueue([]article.Article) error
	LoadQueue() ([]article.Article, error)
	AppendHistory(storage.HistoryEntry) error
	LoadHistory(limit int) ([]storage.HistoryEntry, error)
	AddRemovedLink(string) error
	LoadRemovedLinks() (map[string]struct{}, error)
	SaveBias(bias.Map, []string) error
	LoadBias() (bias.Map, error)
	ResetBias() error
}

// ErrPreconditions is returned by Start when no publish token or no
// target destination is configured.
var ErrPreconditions = errors.New("publish token and target destination must be configured")

type Engine struct {
	fetcher   Fetcher
	publisher Publisher
	store     Store
	sched     *scheduler.Scheduler
	activity  *ActivityLog

	mu       sync.Mutex
	settings config.Settings
	token    string
	queue    []article.Article
	history  []storage.HistoryEntry // newest first
	removed  map[string]struct{}
	biasMap  bias.Map

	fetchInFlight bool
	postInFlight  bool
}

func NewEngine(fetcher Fetcher, publisher Publisher, store Store, settings config.Settings, token string) *Engine {
	e := &Engine{
		fetcher:   fetcher,
		publisher: publisher,
		store:     store,
		activity:  NewActivityLog(),
		settings:  settings,
		token:     token,
		removed:   make(map[string]struct{}),
		biasMap:   make(bias.Map),
	}
	e.sched = scheduler.New(e.RunPostCycle, e.RunFetchCycle)
	return e
}

// LoadState restores the queue, history, removed links, and bias from
// the store. Called once before Start.
func (e *Engine) LoadState() error {
	q, err := e.store.LoadQueue()
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	h, err := e.store.LoadHistory(0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	r, err := e.store.LoadRemovedLinks()
	if err != nil {
		return fmt.Errorf("load removed links: %w", err)
	}
	b, err := e.store.LoadBias()
	if err != nil {
		return fmt.Errorf("load bias: %w", err)
	}

	e.mu.Lock()
	e.queue = q
	e.history = h
	e.removed = r
	e.biasMap = b
	e.mu.Unlock()

	logger.Info("state loaded", "queue", len(q), "history", len(h), "removed", len(r), "bias_words", len(b))
	return nil
}

// Start arms both timers after checking the posting preconditions.
// Failing them is a warning and ErrPreconditions, not a crash.
func (e *Engine) Start() error {
	e.mu.Lock()
	token, destination := e.token, e.settings.TargetDestination
	interval := time.Duration(e.settings.CheckIntervalMinutes) * time.Minute
	e.mu.Unlock()

	if token == "" || destination == "" {
		e.logActivity(SeverityWarn, "cannot start automation: missing publish token or target destination")
		return ErrPreconditions
	}
	return e.sched.Start(interval)
}

// Stop cancels both timers. An in-flight cycle finishes so its
// submission outcomes are recorded.
func (e *Engine) Stop() {
	e.sched.Stop()
}

// TriggerFetch runs one fetch cycle on demand, independent of the
// scheduled fetch timer.
func (e *Engine) TriggerFetch() {
	e.RunFetchCycle()
}

// RunFetchCycle retrieves new articles and merges them into the queue.
// At most one fetch cycle runs at a time; extra triggers are dropped.
func (e *Engine) RunFetchCycle() {
	e.mu.Lock()
	if e.fetchInFlight {
		e.mu.Unlock()
		logger.Debug("fetch cycle already in flight, skipping")
		return
	}
	e.fetchInFlight = true
	urls := append([]string(nil), e.settings.FeedURLs...)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.fetchInFlight = false
		e.mu.Unlock()
	}()

	start := time.Now()
	articles, feedErrs := e.fetcher.Fetch(context.Background(), urls)
	for _, fe := range feedErrs {
		e.logActivity(SeverityWarn, "feed error: "+fe)
	}
	metrics.Global.AddArticlesFetched(len(articles))
	metrics.Global.AddFeedErrors(len(feedErrs))

	e.mu.Lock()
	excluded := e.excludedLinksLocked()
	merged, added := queue.Merge(e.queue, articles, excluded)
	e.queue = merged
	err := e.store.SaveQueue(merged)
	e.mu.Unlock()

	if err != nil {
		e.logActivity(SeverityError, fmt.Sprintf("persist queue after fetch: %v", err))
	}
	metrics.Global.AddArticlesQueued(added)
	metrics.Global.RecordFetchCycle(time.Since(start))
	e.logActivity(SeverityInfo, fmt.Sprintf("fetch cycle: %d fetched, %d new in queue (%d total)", len(articles), added, len(merged)))
}

// excludedLinksLocked builds the merge exclusion set: everything
// already posted, already queued, or explicitly removed by the user.
func (e *Engine) excludedLinksLocked() map[string]struct{} {
	excluded := queue.Links(e.queue)
	for _, h := range e.history {
		excluded[h.ArticleID] = struct{}{}
	}
	for link := range e.removed {
		excluded[link] = struct{}{}
	}
	return excluded
}

// RunPostCycle filters, scores, and submits the top queued articles.
// At most one post cycle runs at a time.
func (e *Engine) RunPostCycle() {
	e.mu.Lock()
	if e.postInFlight {
		e.mu.Unlock()
		logger.Debug("post cycle already in flight, skipping")
		return
	}
	e.postInFlight = true
	settings := e.settings
	token := e.token
	working := append([]article.Article(nil), e.queue...)
	historyTitles := e.recentHistoryTitlesLocked(duplicateHistoryWindow)
	var biasSnapshot bias.Map
	if settings.UseAdaptiveLearning {
		biasSnapshot = bias.Clone(e.biasMap)
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.postInFlight = false
		e.mu.Unlock()
	}()

	// Fatal precondition: without a token and destination the cycle
	// cannot ever succeed, so automation stops instead of retrying.
	if token == "" || settings.TargetDestination == "" {
		e.logActivity(SeverityError, "post cycle aborted: missing publish token or target destination; stopping automation")
		metrics.Global.SetError("missing publish credentials")
		e.Stop()
		return
	}

	if len(working) == 0 {
		logger.Debug("post cycle: queue empty")
		return
	}

	start := time.Now()

	// Semantic duplicate filter: flagged articles sit out this cycle's
	// candidate set but are not posted.
	dupSet := make(map[string]struct{})
	if settings.UseDuplicateCheck {
		dupIDs := dedup.FindDuplicates(working, historyTitles, dedup.DefaultThreshold)
		if len(dupIDs) > 0 {
			for _, id := range dupIDs {
				dupSet[id] = struct{}{}
				metrics.Global.IncrementDuplicatesFiltered()
			}
			filtered := working[:0]
			for _, a := range working {
				if _, dup := dupSet[a.ID]; !dup {
					filtered = append(filtered, a)
				}
			}
			working = filtered
			e.logActivity(SeverityInfo, fmt.Sprintf("post cycle: %d articles skipped as near-duplicates of recent posts", len(dupIDs)))
		}
	}

	// Score, threshold-filter, rank, and cut the batch.
	keywordWeights := scoring.BuildKeywordWeights(settings.InclusionKeywords, settings.ExclusionKeywords)
	now := time.Now()
	type scored struct {
		art article.Article
		bd  scoring.Breakdown
	}
	var candidates []scored
	for _, a := range working {
		bd := scoring.Score(a, keywordWeights, settings.AuthorityScores, biasSnapshot, now)
		if bd.Total < settings.MinimumScore {
			continue
		}
		candidates = append(candidates, scored{art: a, bd: bd})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].bd.Total != candidates[j].bd.Total {
			return candidates[i].bd.Total > candidates[j].bd.Total
		}
		return candidates[i].art.Published.After(candidates[j].art.Published)
	})
	if len(candidates) > settings.PostLimit {
		candidates = candidates[:settings.PostLimit]
	}

	if len(candidates) == 0 {
		// Below-threshold articles stay queued for future cycles.
		// Duplicate-flagged IDs are subtracted from the live queue, not
		// restored from the snapshot: a removal or fetch merge that
		// landed during the unlocked scoring pass stays applied.
		e.mu.Lock()
		var err error
		if len(dupSet) > 0 {
			remaining := make([]article.Article, 0, len(e.queue))
			for _, a := range e.queue {
				if _, dup := dupSet[a.ID]; !dup {
					remaining = append(remaining, a)
				}
			}
			e.queue = remaining
			err = e.store.SaveQueue(remaining)
		}
		e.mu.Unlock()
		if err != nil {
			e.logActivity(SeverityError, fmt.Sprintf("persist queue after post cycle: %v", err))
		}
		metrics.Global.RecordPostCycle(time.Since(start))
		e.logActivity(SeverityInfo, "post cycle: no articles above minimum score")
		return
	}

	// Submit sequentially; the endpoint takes one submission at a time
	// and deterministic ordering keeps the history readable.
	posted := make(map[string]struct{})
	var newEntries []storage.HistoryEntry
	for _, c := range candidates {
		a := c.art
		publishedURL, err := e.publisher.Submit(context.Background(), token, settings.TargetDestination, a.Title, a.Link, settings.DefaultFlairID)
		switch {
		case err == nil:
			posted[a.ID] = struct{}{}
			newEntries = append(newEntries, storage.HistoryEntry{
				ArticleID:    a.ID,
				Title:        a.Title,
				Link:         a.Link,
				PublishedURL: publishedURL,
				PostedAt:     time.Now(),
			})
			metrics.Global.IncrementPostsSubmitted()
			e.logActivity(SeverityInfo, fmt.Sprintf("posted (score %d): %s -> %s", c.bd.Total, a.Title, publishedURL))
		case errors.Is(err, publish.ErrAlreadySubmitted):
			// Terminal outcome: record it so the article never retries.
			posted[a.ID] = struct{}{}
			newEntries = append(newEntries, storage.HistoryEntry{
				ArticleID:    a.ID,
				Title:        a.Title,
				Link:         a.Link,
				PublishedURL: SentinelAlreadySubmitted,
				PostedAt:     time.Now(),
			})
			metrics.Global.IncrementDuplicatesFiltered()
			e.logActivity(SeverityWarn, "already submitted, recorded as posted: "+a.Title)
		default:
			metrics.Global.IncrementPostsFailed()
			e.logActivity(SeverityError, fmt.Sprintf("submission failed, will retry next cycle: %s: %v", a.Title, err))
		}
	}

	// Write back: posted articles leave the queue; everything else,
	// including duplicate-flagged entries, stays for the next cycle.
	e.mu.Lock()
	if len(posted) > 0 {
		remaining := make([]article.Article, 0, len(e.queue))
		for _, a := range e.queue {
			if _, ok := posted[a.ID]; !ok {
				remaining = append(remaining, a)
			}
		}
		e.queue = remaining
	}
	e.history = append(reverse(newEntries), e.history...)
	saveErr := e.store.SaveQueue(e.queue)
	e.mu.Unlock()

	if saveErr != nil {
		e.logActivity(SeverityError, fmt.Sprintf("persist queue after post cycle: %v", saveErr))
	}
	for _, entry := range newEntries {
		if err := e.store.AppendHistory(entry); err != nil {
			e.logActivity(SeverityError, fmt.Sprintf("persist history entry %s: %v", entry.ArticleID, err))
		}
	}
	metrics.Global.RecordPostCycle(time.Since(start))
}

// reverse flips a slice of new history entries so that, prepended to
// the newest-first history, the last submission lands on top.
func reverse(entries []storage.HistoryEntry) []storage.HistoryEntry {
	out := make([]storage.HistoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func (e *Engine) recentHistoryTitlesLocked(n int) []string {
	if len(e.history) < n {
		n = len(e.history)
	}
	titles := make([]string, n)
	for i := 0; i < n; i++ {
		titles[i] = e.history[i].Title
	}
	return titles
}

// RemoveArticle discards one queued article by ID. The link is
// suppressed from all future fetch merges; with adaptive learning
// enabled the title's words are also penalized.
func (e *Engine) RemoveArticle(id string) error {
	e.mu.Lock()
	idx := -1
	for i, a := range e.queue {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("article %s not in queue", id)
	}
	removed := e.queue[idx]
	e.queue = append(e.queue[:idx:idx], e.queue[idx+1:]...)
	e.removed[id] = struct{}{}

	var biasWords []string
	adaptive := e.settings.UseAdaptiveLearning
	if adaptive {
		biasWords = bias.RecordRejection(e.biasMap, removed.Title)
	}
	queueErr := e.store.SaveQueue(e.queue)
	removeErr := e.store.AddRemovedLink(id)
	var biasErr error
	if adaptive && len(biasWords) > 0 {
		biasErr = e.store.SaveBias(e.biasMap, biasWords)
	}
	e.mu.Unlock()

	for _, err := range []error{queueErr, removeErr, biasErr} {
		if err != nil {
			e.logActivity(SeverityError, fmt.Sprintf("persist removal of %s: %v", id, err))
		}
	}
	if adaptive {
		e.logActivity(SeverityInfo, fmt.Sprintf("removed %q, penalized %d keywords", removed.Title, len(biasWords)))
	} else {
		e.logActivity(SeverityInfo, fmt.Sprintf("removed %q from queue", removed.Title))
	}
	return nil
}

// ResetBias clears every learned keyword penalty.
func (e *Engine) ResetBias() error {
	e.mu.Lock()
	e.biasMap = make(bias.Map)
	err := e.store.ResetBias()
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("reset bias: %w", err)
	}
	e.logActivity(SeverityInfo, "adaptive memory reset")
	return nil
}

// ApplySettings swaps in new settings and immediately re-filters the
// queue against the new minimum score. Articles only ever leave the
// queue here via that threshold re-filter.
func (e *Engine) ApplySettings(settings config.Settings) {
	e.mu.Lock()
	e.settings = settings
	e.sched.UpdateInterval(time.Duration(settings.CheckIntervalMinutes) * time.Minute)

	keywordWeights := scoring.BuildKeywordWeights(settings.InclusionKeywords, settings.ExclusionKeywords)
	var biasSnapshot bias.Map
	if settings.UseAdaptiveLearning {
		biasSnapshot = e.biasMap
	}
	now := time.Now()
	kept := make([]article.Article, 0, len(e.queue))
	for _, a := range e.queue {
		bd := scoring.Score(a, keywordWeights, settings.AuthorityScores, biasSnapshot, now)
		if bd.Total >= settings.MinimumScore {
			kept = append(kept, a)
		}
	}
	dropped := len(e.queue) - len(kept)
	var err error
	if dropped > 0 {
		e.queue = kept
		err = e.store.SaveQueue(kept)
	}
	e.mu.Unlock()

	if err != nil {
		e.logActivity(SeverityError, fmt.Sprintf("persist queue after settings change: %v", err))
	}
	if dropped > 0 {
		e.logActivity(SeverityInfo, fmt.Sprintf("settings updated, %d queued articles fell below the new minimum score", dropped))
	} else {
		e.logActivity(SeverityInfo, "settings updated")
	}
}

// QueuedArticle pairs a queue entry with its breakdown under the
// current settings. Breakdowns are recomputed on demand, never stored.
type QueuedArticle struct {
	Article article.Article   `json:"article"`
	Score   scoring.Breakdown `json:"score"`
}

// QueueSnapshot returns the queue with fresh score breakdowns.
func (e *Engine) QueueSnapshot() []QueuedArticle {
	e.mu.Lock()
	settings := e.settings
	q := append([]article.Article(nil), e.queue...)
	var biasSnapshot bias.Map
	if settings.UseAdaptiveLearning {
		biasSnapshot = bias.Clone(e.biasMap)
	}
	e.mu.Unlock()

	keywordWeights := scoring.BuildKeywordWeights(settings.InclusionKeywords, settings.ExclusionKeywords)
	now := time.Now()
	out := make([]QueuedArticle, len(q))
	for i, a := range q {
		out[i] = QueuedArticle{
			Article: a,
			Score:   scoring.Score(a, keywordWeights, settings.AuthorityScores, biasSnapshot, now),
		}
	}
	return out
}

// History returns the newest limit posting records; limit <= 0 returns
// everything.
func (e *Engine) History(limit int) []storage.HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.history
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	return append([]storage.HistoryEntry(nil), h...)
}

// Status is the control-surface view of the automation.
type Status struct {
	Running     bool            `json:"running"`
	State       string          `json:"state"`
	Countdown   string          `json:"countdown,omitempty"`
	QueueSize   int             `json:"queue_size"`
	HistorySize int             `json:"history_size"`
	Activity    []ActivityEntry `json:"activity"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	state := "idle"
	if e.fetchInFlight {
		state = "fetching"
	}
	if e.postInFlight {
		state = "posting"
	}
	st := Status{
		Running:     e.sched.Running(),
		State:       state,
		QueueSize:   len(e.queue),
		HistorySize: len(e.history),
	}
	e.mu.Unlock()

	st.Countdown = e.sched.Countdown()
	st.Activity = e.activity.Entries()
	return st
}

// Activity exposes the activity log for the outer layers.
func (e *Engine) Activity() *ActivityLog {
	return e.activity
}

func (e *Engine) logActivity(level Severity, message string) {
	e.activity.Add(level, message)
	switch level {
	case SeverityError:
		logger.Error(message)
	case SeverityWarn:
		logger.Warn(message)
	default:
		logger.Info(message)
	}
}
