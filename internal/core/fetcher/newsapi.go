package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
)

const (
	defaultNewsAPIURL = "https://newsapi.org/v2"
	newsPageLimit     = 100
	defaultNewsLimit  = 50
)

// NewsAPI is a client for the NewsAPI "everything" search endpoint.
type NewsAPI struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// Everything searches articles matching query. language defaults to
// "en", sortBy to "publishedAt"; limit is capped at the provider
// maximum of 100.
func (c *NewsAPI) Everything(ctx context.Context, query, language, sortBy string, limit int) ([]core.NewsItem, error) {
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("newsapi key is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if query == "" {
		query = "finance"
	}
	if language == "" {
		language = "en"
	}
	if sortBy == "" {
		sortBy = "publishedAt"
	}
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	if limit > newsPageLimit {
		limit = newsPageLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("language", language)
	params.Set("sortBy", sortBy)
	params.Set("pageSize", strconv.Itoa(limit))
	params.Set("apiKey", c.APIKey)

	endpoint := c.baseURL() + "/everything?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		Trace(TraceEntry{
			Provider:   "newsapi",
			Endpoint:   redactEndpoint(endpoint),
			Method:     http.MethodGet,
			Error:      err.Error(),
			DurationMs: duration.Milliseconds(),
		})
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	Trace(TraceEntry{
		Provider:   "newsapi",
		Endpoint:   redactEndpoint(endpoint),
		Method:     http.MethodGet,
		StatusCode: resp.StatusCode,
		DurationMs: duration.Milliseconds(),
	})

	if resp.StatusCode == http.StatusTooManyRequests {
		wait, _ := retryAfterHeader(resp)
		return nil, &ProviderThrottledError{RetryIn: wait}
	}

	var payload struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			Author      string `json:"author"`
			PublishedAt string `json:"publishedAt"`
			URLToImage  string `json:"urlToImage"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode newsapi response: %w", err)
	}

	if payload.Status == "error" {
		return nil, fmt.Errorf("newsapi: %s", payload.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned status %d", resp.StatusCode)
	}

	items := make([]core.NewsItem, 0, len(payload.Articles))
	for _, article := range payload.Articles {
		item := core.NewsItem{
			Title:       article.Title,
			Description: article.Description,
			URL:         article.URL,
			Source:      article.Source.Name,
			Author:      article.Author,
			ImageURL:    article.URLToImage,
		}
		if published, err := time.Parse(time.RFC3339, article.PublishedAt); err == nil {
			item.PublishedAt = published
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *NewsAPI) baseURL() string {
	if c != nil && c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultNewsAPIURL
}

// NewsFetcher serves guarded news searches. With a configured NewsAPI
// key it queries NewsAPI; otherwise it falls back to the configured
// RSS feeds.
type NewsFetcher struct {
	Client      *NewsAPI
	Feeds       []string
	HTTPClient  *http.Client
	Guard       *engine.Guard
	TTL         TTLPolicy
	ToolVersion string
	Clock       func() time.Time
}

// Fetch resolves a news search through the guard. The query falls
// back to the request symbol, then to "finance".
func (f *NewsFetcher) Fetch(ctx context.Context, req core.FetchRequest) (*core.FetchResult, error) {
	if f == nil {
		return nil, errors.New("news fetcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	symbol := core.NormalizeSymbol(req.Symbol)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = symbol
	}
	if query == "" {
		query = "finance"
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultNewsLimit
	}

	provider := providerNewsAPI
	if !f.hasAPIKey() {
		provider = providerRSS
	}

	requestedAt := f.now()

	key := ""
	if !req.NoCache {
		key = CacheKey(core.FetchKindNews, provider, query, strconv.Itoa(limit))
	}

	outcome, err := f.Guard.DoTTL(ctx, key, req.Identity, cacheTTL(f.TTL, core.FetchKindNews), func(ctx context.Context) ([]byte, error) {
		items, err := f.collect(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	})
	if err != nil {
		return nil, err
	}

	result := newResult(symbol, core.FetchKindNews, "", outcome, provider, f.ToolVersion, requestedAt, f.now())
	if outcome.Status != engine.StatusDenied {
		var items []core.NewsItem
		if err := json.Unmarshal(outcome.Value, &items); err != nil {
			return nil, fmt.Errorf("decode news items: %w", err)
		}
		result.News = items
	}
	return result, nil
}

// Kind returns the fetch kind this fetcher serves.
func (f *NewsFetcher) Kind() core.FetchKind {
	return core.FetchKindNews
}

// Supports accepts any value; news queries are free-form.
func (f *NewsFetcher) Supports(string) bool {
	return true
}

func (f *NewsFetcher) collect(ctx context.Context, query string, limit int) ([]core.NewsItem, error) {
	var items []core.NewsItem
	var err error
	if f.hasAPIKey() {
		items, err = f.Client.Everything(ctx, query, "", "", limit)
	} else {
		items, err = f.fetchFeeds(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	items = dedupeNews(items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// fetchFeeds aggregates the configured RSS feeds. A feed failure is
// tolerated as long as at least one feed yields items.
func (f *NewsFetcher) fetchFeeds(ctx context.Context, limit int) ([]core.NewsItem, error) {
	if len(f.Feeds) == 0 {
		return nil, errors.New("no news source configured: set a newsapi key or rss feeds")
	}

	var items []core.NewsItem
	var errs []error
	for _, feedURL := range f.Feeds {
		news, err := FetchFeed(ctx, f.HTTPClient, feedURL, limit)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, news...)
	}

	if len(items) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

func (f *NewsFetcher) hasAPIKey() bool {
	return f != nil && f.Client != nil && strings.TrimSpace(f.Client.APIKey) != ""
}

func (f *NewsFetcher) now() time.Time {
	if f != nil && f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}
