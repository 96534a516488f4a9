package core

import "time"

// FetchBatch captures the results for a single symbol across one or
// more fetch kinds.
type FetchBatch struct {
	Symbol      string         `json:"symbol"`
	Results     []*FetchResult `json:"results"`
	Succeeded   int            `json:"succeeded"`
	FromCache   int            `json:"from_cache"`
	Denied      int            `json:"denied"`
	Failed      int            `json:"failed"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Summarize recomputes the batch counters from its results.
func (b *FetchBatch) Summarize() {
	if b == nil {
		return
	}

	b.Succeeded = 0
	b.FromCache = 0
	b.Denied = 0
	b.Failed = 0

	for _, result := range b.Results {
		if result == nil {
			continue
		}
		switch result.Status {
		case FetchStatusOK:
			b.Succeeded++
			if result.Provenance.FromCache {
				b.FromCache++
			}
		case FetchStatusDenied:
			b.Denied++
		case FetchStatusError:
			b.Failed++
		}
	}
}
