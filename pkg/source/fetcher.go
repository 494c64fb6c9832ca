package source

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Fetcher runs the configured sources. A failing source never aborts the batch.
type Fetcher struct {
	sources []Source
	logger  *slog.Logger
}

// NewFetcher creates a fetcher over sources in the given order.
func NewFetcher(sources []Source, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{sources: sources, logger: logger}
}

// Sources returns the configured sources.
func (f *Fetcher) Sources() []Source {
	return f.sources
}

// FetchFromSource fetches one source. Errors and panics are logged and
// turn into an empty result.
func (f *Fetcher) FetchFromSource(ctx context.Context, src Source) (items []RawItem) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("source panicked", "source", src.Name(), "err", fmt.Sprint(r))
			items = nil
		}
	}()

	items, err := src.Fetch(ctx)
	if err != nil {
		f.logger.Error("fetch failed", "source", src.Name(), "err", err)
		return nil
	}
	f.logger.Debug("fetched", "source", src.Name(), "items", len(items))
	return items
}

// FetchAll fetches every source concurrently and concatenates the results
// in configuration order.
func (f *Fetcher) FetchAll(ctx context.Context) []RawItem {
	results := make([][]RawItem, len(f.sources))

	var g errgroup.Group
	g.SetLimit(4)
	for i, src := range f.sources {
		g.Go(func() error {
			results[i] = f.FetchFromSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var all []RawItem
	for _, r := range results {
		all = append(all, r...)
	}
	f.logger.Info("fetched all sources", "sources", len(f.sources), "items", len(all))
	return all
}
