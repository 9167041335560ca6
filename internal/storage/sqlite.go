// Package storage persists the automation state: the article queue,
// the posting history, user-removed links, and the learned keyword
// bias. Every mutation is written through immediately so a restart
// resumes exactly where the process stopped.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"feedposter/internal/article"
	"feedposter/internal/bias"
)

// HistoryEntry records one successful (or already-submitted) posting.
type HistoryEntry struct {
	ArticleID    string    `json:"article_id"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	PublishedURL string    `json:"published_url"`
	PostedAt     time.Time `json:"posted_at"`
}

type Store struct {
	db *sql.DB
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS queue_articles (
	position INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	source TEXT,
	published INTEGER,
	description TEXT
);

CREATE TABLE IF NOT EXISTS posting_history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id TEXT NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	published_url TEXT,
	posted_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS removed_links (
	link TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS keyword_bias (
	word TEXT PRIMARY KEY,
	penalty INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posting_history_article ON posting_history(article_id);
`

// New opens (creating if needed) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveQueue replaces the stored queue with the given snapshot,
// preserving its order.
func (s *Store) SaveQueue(articles []article.Article) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin queue save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM queue_articles"); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	for i, a := range articles {
		_, err := tx.Exec(
			`INSERT INTO queue_articles (position, id, title, link, source, published, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, a.ID, a.Title, a.Link, a.Source, unixOrZero(a.Published), a.Description,
		)
		if err != nil {
			return fmt.Errorf("insert queue article %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// LoadQueue returns the stored queue in its saved order.
func (s *Store) LoadQueue() ([]article.Article, error) {
	rows, err := s.db.Query(
		`SELECT id, title, link, source, published, description
		 FROM queue_articles ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	defer rows.Close()

	var queue []article.Article
	for rows.Next() {
		var a article.Article
		var published int64
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &a.Source, &published, &a.Description); err != nil {
			return nil, fmt.Errorf("scan queue article: %w", err)
		}
		a.Published = timeOrZero(published)
		queue = append(queue, a)
	}
	return queue, rows.Err()
}

// AppendHistory adds one posting record.
func (s *Store) AppendHistory(e HistoryEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO posting_history (article_id, title, link, published_url, posted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ArticleID, e.Title, e.Link, e.PublishedURL, e.PostedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append history %s: %w", e.ArticleID, err)
	}
	return nil
}

// LoadHistory returns posting records newest first. limit <= 0 loads
// everything.
func (s *Store) LoadHistory(limit int) ([]HistoryEntry, error) {
	query := `SELECT article_id, title, link, published_url, posted_at
	          FROM posting_history ORDER BY seq DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var postedAt int64
		if err := rows.Scan(&e.ArticleID, &e.Title, &e.Link, &e.PublishedURL, &postedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.PostedAt = time.Unix(postedAt, 0).UTC()
		history = append(history, e)
	}
	return history, rows.Err()
}

// AddRemovedLink marks a normalized link as user-discarded. Once added
// it is never cleared.
func (s *Store) AddRemovedLink(link string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO removed_links (link) VALUES (?)`, link)
	if err != nil {
		return fmt.Errorf("add removed link: %w", err)
	}
	return nil
}

// LoadRemovedLinks returns the set of user-discarded links.
func (s *Store) LoadRemovedLinks() (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT link FROM removed_links`)
	if err != nil {
		return nil, fmt.Errorf("load removed links: %w", err)
	}
	defer rows.Close()

	removed := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan removed link: %w", err)
		}
		removed[link] = struct{}{}
	}
	return removed, rows.Err()
}

// SaveBias upserts the penalties for the given words.
func (s *Store) SaveBias(m bias.Map, words []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin bias save: %w", err)
	}
	defer tx.Rollback()

	for _, w := range words {
		_, err := tx.Exec(
			`INSERT INTO keyword_bias (word, penalty) VALUES (?, ?)
			 ON CONFLICT(word) DO UPDATE SET penalty = excluded.penalty`,
			w, m[w],
		)
		if err != nil {
			return fmt.Errorf("save bias %q: %w", w, err)
		}
	}
	return tx.Commit()
}

// LoadBias returns the learned keyword penalties.
func (s *Store) LoadBias() (bias.Map, error) {
	rows, err := s.db.Query(`SELECT word, penalty FROM keyword_bias`)
	if err != nil {
		return nil, fmt.Errorf("load bias: %w", err)
	}
	defer rows.Close()

	m := make(bias.Map)
	for rows.Next() {
		var word string
		var penalty int
		if err := rows.Scan(&word, &penalty); err != nil {
			return nil, fmt.Errorf("scan bias entry: %w", err)
		}
		m[word] = penalty
	}
	return m, rows.Err()
}

// ResetBias clears every learned penalty.
func (s *Store) ResetBias() error {
	if _, err := s.db.Exec(`DELETE FROM keyword_bias`); err != nil {
		return fmt.Errorf("reset bias: %w", err)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
