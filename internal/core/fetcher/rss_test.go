package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
	<channel>
		<title>Example Market News</title>
		<link>https://news.example.com</link>
		<item>
			<title>Oil climbs two percent</title>
			<description>Crude rose on supply worries.</description>
			<link>https://news.example.com/oil</link>
			<pubDate>Tue, 03 Feb 2026 15:00:00 +0000</pubDate>
			<dc:creator>B. Columnist</dc:creator>
		</item>
		<item>
			<title>Chipmakers slide</title>
			<description>Semis fell after guidance.</description>
			<link>https://news.example.com/chips</link>
			<pubDate>Tue, 03 Feb 2026 12:00:00 +0000</pubDate>
			<author>desk@example.com</author>
		</item>
	</channel>
</rss>`

func TestFetchFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	items, err := FetchFeed(context.Background(), server.Client(), server.URL, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "Oil climbs two percent", items[0].Title)
	require.Equal(t, "https://news.example.com/oil", items[0].URL)
	require.Equal(t, "Example Market News", items[0].Source)
	require.Equal(t, "B. Columnist", items[0].Author)
	require.Equal(t, time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC), items[0].PublishedAt.UTC())

	require.Equal(t, "desk@example.com", items[1].Author)
}

func TestFetchFeedHonorsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	items, err := FetchFeed(context.Background(), server.Client(), server.URL, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Oil climbs two percent", items[0].Title)
}

func TestFetchFeedReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := FetchFeed(context.Background(), server.Client(), server.URL, 10)
	require.ErrorContains(t, err, "returned status 500")
}

func TestFetchFeedRequiresURL(t *testing.T) {
	_, err := FetchFeed(context.Background(), nil, "  ", 10)
	require.ErrorContains(t, err, "feed url is required")
}
