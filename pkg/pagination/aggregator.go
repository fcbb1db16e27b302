package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/donorschoose-client/pkg/query"
	"github.com/Sternrassler/donorschoose-client/pkg/ratelimit"
	"github.com/Sternrassler/donorschoose-client/pkg/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageSize is the number of records requested per page, the API maximum.
const PageSize = query.MaxPageSize

// ErrMaxPages is returned when a search hits Config.MaxPages before an
// empty page.
var ErrMaxPages = errors.New("page limit reached before end of results")

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dc_pages_fetched_total",
		Help: "Total non-empty listing pages merged",
	})

	itemsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dc_items_merged_total",
		Help: "Total proposals merged into search results",
	})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dc_searches_total",
		Help: "Total searches by outcome",
	}, []string{"outcome"})
)

// PageFetcher fetches and decodes a single listing page. It must return an
// error, never an empty page, when the transport or decoding fails.
type PageFetcher interface {
	FetchPage(ctx context.Context, req *query.Request) (*results.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, req *query.Request) (*results.Page, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc) FetchPage(ctx context.Context, req *query.Request) (*results.Page, error) {
	return f(ctx, req)
}

// Config holds aggregator configuration. Query options apply to every page;
// offsets and page size are owned by the aggregator.
type Config struct {
	APIKey      string
	BaseURL     string
	Filters     query.Filters
	BoundingBox []float64
	Concise     bool

	// Delay between page requests. Ignored when Pacer is set.
	Delay time.Duration

	// Pacer overrides the fixed in-process delay.
	Pacer ratelimit.Pacer

	// MaxPages caps the number of requests per search (0 = unlimited).
	MaxPages int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		APIKey: query.DefaultAPIKey,
		Delay:  ratelimit.DefaultDelay,
	}
}

// Aggregator runs paginated searches. Pages are fetched strictly one after
// another.
type Aggregator struct {
	fetcher PageFetcher
	pacer   ratelimit.Pacer
	config  Config
	logger  zerolog.Logger
}

// NewAggregator creates an aggregator over fetcher.
func NewAggregator(fetcher PageFetcher, config Config) (*Aggregator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if config.MaxPages < 0 {
		return nil, fmt.Errorf("max_pages must be >= 0 (got %d)", config.MaxPages)
	}

	pacer := config.Pacer
	if pacer == nil {
		pacer = ratelimit.NewFixedDelay(config.Delay)
	}

	return &Aggregator{
		fetcher: fetcher,
		pacer:   pacer,
		config:  config,
		logger:  log.With().Str("component", "aggregator").Logger(),
	}, nil
}

// params returns the request parameters for the page at offset start.
func (a *Aggregator) params(keywords string, start int) query.Params {
	return query.Params{
		Keywords:    keywords,
		Start:       start,
		PageSize:    PageSize,
		APIKey:      a.config.APIKey,
		Filters:     a.config.Filters,
		BoundingBox: a.config.BoundingBox,
		Concise:     a.config.Concise,
		BaseURL:     a.config.BaseURL,
	}
}

// SearchAll fetches pages at offsets 0, 50, 100, ... until a page with no
// proposals arrives, merging each non-empty page. A short page does not end
// the search; only an empty one does.
//
// Any error aborts the search and no partial result is returned.
func (a *Aggregator) SearchAll(ctx context.Context, keywords string) (*results.Accumulator, error) {
	start := time.Now()
	acc := results.NewAccumulator()

	a.logger.Info().Str("keywords", keywords).Msg("Starting search")

	for n := 0; ; n++ {
		if a.config.MaxPages > 0 && n >= a.config.MaxPages {
			searchesTotal.WithLabelValues("page_limit").Inc()
			return nil, fmt.Errorf("%w (%d pages, %d proposals)", ErrMaxPages, n, acc.Len())
		}

		req, err := query.Build(a.params(keywords, n*PageSize))
		if err != nil {
			searchesTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}

		page, err := a.fetcher.FetchPage(ctx, req)
		if err != nil {
			searchesTotal.WithLabelValues("error").Inc()
			a.logger.Error().
				Err(err).
				Int("page", n).
				Int("merged", acc.Len()).
				Msg("Page fetch failed, aborting search")
			return nil, fmt.Errorf("fetch page %d (index %d): %w", n, req.Start, err)
		}
		if page == nil {
			searchesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("fetch page %d (index %d): fetcher returned no page", n, req.Start)
		}

		if page.Empty() {
			break
		}

		acc.Merge(page)
		pagesFetchedTotal.Inc()
		itemsMergedTotal.Add(float64(len(page.Proposals)))

		a.logger.Debug().
			Int("page", n).
			Int("proposals", len(page.Proposals)).
			Int("merged", acc.Len()).
			Int("total", acc.TotalAvailable()).
			Msg("Page merged")

		if err := a.pacer.Wait(ctx); err != nil {
			searchesTotal.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("wait before page %d: %w", n+1, err)
		}
	}

	searchesTotal.WithLabelValues("complete").Inc()

	event := a.logger.Info()
	if !acc.Complete() {
		event = a.logger.Warn()
	}
	event.
		Str("keywords", keywords).
		Int("proposals", acc.Len()).
		Int("total", acc.TotalAvailable()).
		Dur("duration", time.Since(start)).
		Msg("Search complete")

	return acc, nil
}

// SearchAll runs a search with the default configuration.
func SearchAll(ctx context.Context, fetcher PageFetcher, keywords string) (*results.Accumulator, error) {
	agg, err := NewAggregator(fetcher, DefaultConfig())
	if err != nil {
		return nil, err
	}
	return agg.SearchAll(ctx, keywords)
}
