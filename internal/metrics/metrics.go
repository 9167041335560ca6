package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ArticlesFetched    int64
	ArticlesQueued     int64
	DuplicatesFiltered int64
	PostsSubmitted     int64
	PostsFailed        int64
	FetchCycles        int64
	PostCycles         int64
	FeedErrors         int64

	// Timings
	LastFetchDuration time.Duration
	LastPostDuration  time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddArticlesFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesFetched += int64(n)
}

func (m *Metrics) AddArticlesQueued(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesQueued += int64(n)
}

func (m *Metrics) IncrementDuplicatesFiltered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered++
}

func (m *Metrics) IncrementPostsSubmitted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsSubmitted++
}

func (m *Metrics) IncrementPostsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsFailed++
}

func (m *Metrics) AddFeedErrors(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedErrors += int64(n)
}

func (m *Metrics) RecordFetchCycle(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCycles++
	m.LastFetchDuration = duration
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) RecordPostCycle(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostCycles++
	m.LastPostDuration = duration
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"articles_fetched":       m.ArticlesFetched,
		"articles_queued":        m.ArticlesQueued,
		"duplicates_filtered":    m.DuplicatesFiltered,
		"posts_submitted":        m.PostsSubmitted,
		"posts_failed":           m.PostsFailed,
		"fetch_cycles":           m.FetchCycles,
		"post_cycles":            m.PostCycles,
		"feed_errors":            m.FeedErrors,
		"last_fetch_duration_ms": m.LastFetchDuration.Milliseconds(),
		"last_post_duration_ms":  m.LastPostDuration.Milliseconds(),
		"last_run_time":          m.LastRunTime.Format(time.RFC3339),
		"last_error_time":        m.LastErrorTime.Format(time.RFC3339),
		"last_error":             m.LastError,
		"is_healthy":             m.IsHealthy,
	}
}
