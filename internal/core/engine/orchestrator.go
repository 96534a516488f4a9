package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/marketlens/marketlens/internal/core"
)

// Orchestrator routes fetch requests to the configured fetchers.
type Orchestrator struct {
	Fetchers map[core.FetchKind]Fetcher
	Clock    func() time.Time
}

// Fetcher describes a market-data fetcher for one fetch kind.
type Fetcher interface {
	Fetch(ctx context.Context, req core.FetchRequest) (*core.FetchResult, error)
	Kind() core.FetchKind
	Supports(symbol string) bool
}

// Fetch dispatches one request to the fetcher for its kind. Unknown
// kinds and unsupported symbols produce error results, not errors;
// only fetcher failures propagate.
func (o *Orchestrator) Fetch(ctx context.Context, req core.FetchRequest) (*core.FetchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	fetcher := o.getFetcher(req.Kind)
	if fetcher == nil {
		return o.errorResult(req, fmt.Sprintf("no fetcher configured for kind %q", req.Kind)), nil
	}

	if !fetcher.Supports(req.Symbol) {
		return o.errorResult(req, fmt.Sprintf("fetcher %q does not support symbol %q", req.Kind, req.Symbol)), nil
	}

	return fetcher.Fetch(ctx, req)
}

// FetchAll runs one symbol through the requested kinds and bundles
// the results into a batch.
func (o *Orchestrator) FetchAll(ctx context.Context, symbol string, kinds []core.FetchKind, identity string) (*core.FetchBatch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	batch := &core.FetchBatch{Symbol: symbol}

	for _, kind := range kinds {
		result, err := o.Fetch(ctx, core.FetchRequest{
			Symbol:   symbol,
			Kind:     kind,
			Identity: identity,
		})
		if err != nil {
			return nil, err
		}
		if result != nil {
			batch.Results = append(batch.Results, result)
		}
	}

	batch.CompletedAt = o.now()
	batch.Summarize()

	return batch, nil
}

func (o *Orchestrator) getFetcher(kind core.FetchKind) Fetcher {
	if o == nil || o.Fetchers == nil {
		return nil
	}
	return o.Fetchers[kind]
}

func (o *Orchestrator) errorResult(req core.FetchRequest, message string) *core.FetchResult {
	now := o.now()
	return &core.FetchResult{
		Symbol:   req.Symbol,
		Kind:     req.Kind,
		Interval: req.Interval,
		Status:   core.FetchStatusError,
		Message:  message,
		Provenance: core.Provenance{
			RequestedAt: now,
			ResolvedAt:  now,
			Provider:    "orchestrator",
		},
	}
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
