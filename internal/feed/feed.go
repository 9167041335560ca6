// Package feed retrieves and normalizes syndicated feeds. One fetch
// never fails as a whole: unreachable or malformed feeds surface as
// error strings so one bad source cannot block the rest.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"feedposter/internal/article"
	"feedposter/internal/logger"
	"feedposter/internal/retry"
)

type Fetcher struct {
	client   *http.Client
	retryCfg retry.Config
}

func NewFetcher(timeout time.Duration, attempts int, delay time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		retryCfg: retry.Config{
			MaxAttempts: attempts,
			Delay:       delay,
			Backoff:     true,
		},
	}
}

// Fetch downloads and parses all feeds, returning every item as an
// Article. Each feed is retried independently; feeds that still fail
// end up in the errors slice.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]article.Article, []string) {
	parser := gofeed.NewParser()
	parser.Client = f.client

	var all []article.Article
	var errs []string

	for _, url := range urls {
		var parsed *gofeed.Feed
		err := retry.Do(ctx, f.retryCfg, func() error {
			var perr error
			parsed, perr = parser.ParseURLWithContext(url, ctx)
			return perr
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", url, err))
			logger.Warn("feed fetch failed", "url", url, "error", err)
			continue
		}

		sourceName := strings.TrimSpace(parsed.Title)
		if sourceName == "" {
			sourceName = url
		}

		for _, item := range parsed.Items {
			if item.Link == "" {
				continue
			}
			var published time.Time
			if item.PublishedParsed != nil {
				published = *item.PublishedParsed
			} else if item.UpdatedParsed != nil {
				published = *item.UpdatedParsed
			}
			all = append(all, article.New(
				strings.TrimSpace(item.Title),
				item.Link,
				sourceName,
				StripHTML(item.Description),
				published,
			))
		}
		logger.Debug("feed fetched", "url", url, "items", len(parsed.Items))
	}

	logger.Info("feeds processed", "ok", len(urls)-len(errs), "total", len(urls), "articles", len(all))
	return all, errs
}

// StripHTML flattens a feed description to plain text. Many feeds ship
// markup or embedded media in the description; keyword matching wants
// only the words.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
