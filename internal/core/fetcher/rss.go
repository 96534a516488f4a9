package fetcher

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/core"
)

// rssFeed is the subset of RSS 2.0 the news fetcher consumes.
type rssFeed struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Author      string `xml:"author"`
	Creator     string `xml:"creator"`
}

// FetchFeed fetches and normalizes one RSS feed, keeping at most
// limit items in feed order.
func FetchFeed(ctx context.Context, client *http.Client, feedURL string, limit int) ([]core.NewsItem, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, errors.New("feed url is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss feed %s returned status %d", feedURL, resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode rss feed %s: %w", feedURL, err)
	}

	items := feed.Channel.Items
	if len(items) > limit {
		items = items[:limit]
	}

	news := make([]core.NewsItem, 0, len(items))
	for _, item := range items {
		entry := core.NewsItem{
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(item.Description),
			URL:         strings.TrimSpace(item.Link),
			Source:      strings.TrimSpace(feed.Channel.Title),
			Author:      strings.TrimSpace(item.Author),
		}
		if entry.Author == "" {
			entry.Author = strings.TrimSpace(item.Creator)
		}
		entry.PublishedAt = parsePubDate(item.PubDate)
		news = append(news, entry)
	}
	return news, nil
}

func parsePubDate(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
