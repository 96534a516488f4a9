package core

import (
	"regexp"
	"strings"
	"time"
)

// Watchlist defines a named set of symbols to fetch together.
type Watchlist struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Symbols     []string `json:"symbols"`
}

// WatchlistRecord wraps a watchlist with persistence metadata.
type WatchlistRecord struct {
	Watchlist Watchlist
	IsBuiltin bool
	UpdatedAt time.Time
}

// BuiltInWatchlists provides default watchlists bundled with
// marketlens.
var BuiltInWatchlists = []Watchlist{
	{
		Name:        "mega-tech",
		Description: "Large-cap technology bellwethers",
		Symbols:     []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA"},
	},
	{
		Name:        "blue-chips",
		Description: "Dow-style industrial and consumer staples",
		Symbols:     []string{"JNJ", "PG", "KO", "MCD", "HD", "V"},
	},
	{
		Name:        "indexes",
		Description: "Broad-market index ETFs",
		Symbols:     []string{"SPY", "QQQ", "DIA", "IWM"},
	},
	{
		Name:        "semis",
		Description: "Semiconductor supply chain",
		Symbols:     []string{"NVDA", "AMD", "INTC", "TSM", "ASML"},
	},
}

// FindBuiltInWatchlist looks up a built-in watchlist by name.
func FindBuiltInWatchlist(name string) (*Watchlist, bool) {
	needle := strings.TrimSpace(strings.ToLower(name))
	if needle == "" {
		return nil, false
	}

	for _, watchlist := range BuiltInWatchlists {
		if strings.EqualFold(watchlist.Name, needle) {
			copied := watchlist
			return &copied, true
		}
	}

	return nil, false
}

// NormalizeSymbol uppercases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// ValidSymbol reports whether s is a normalized ticker symbol: an
// uppercase letter followed by up to nine letters, digits, dots or
// hyphens.
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// NormalizeSymbols normalizes a symbol list, dropping empties and
// duplicates while preserving order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	normalized := make([]string, 0, len(symbols))

	for _, symbol := range symbols {
		cleaned := NormalizeSymbol(symbol)
		if cleaned == "" {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		normalized = append(normalized, cleaned)
	}

	return normalized
}
