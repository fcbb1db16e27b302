package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/donorschoose-client/pkg/client"
	"github.com/Sternrassler/donorschoose-client/pkg/logging"
	"github.com/Sternrassler/donorschoose-client/pkg/pagination"
	"github.com/Sternrassler/donorschoose-client/pkg/query"
	"github.com/Sternrassler/donorschoose-client/pkg/ratelimit"
	"github.com/Sternrassler/donorschoose-client/pkg/results"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags binds each config key to the named flag.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// queryOptions are the per-search request options.
type queryOptions struct {
	Filters     query.Filters
	BoundingBox []float64
	Concise     bool
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("filter", nil, "listing filter as name=value (repeatable, see "+query.DocsURL+")")
	cmd.Flags().String("bbox", "", "bounding box as north,west,south,east")
	cmd.Flags().Bool("concise", false, "request the reduced field set")
}

func queryOptionsFromFlags(cmd *cobra.Command) (queryOptions, error) {
	rawFilters, _ := cmd.Flags().GetStringArray("filter")
	bbox, _ := cmd.Flags().GetString("bbox")
	concise, _ := cmd.Flags().GetBool("concise")
	return parseQueryOptions(rawFilters, bbox, concise)
}

func parseQueryOptions(rawFilters []string, bbox string, concise bool) (queryOptions, error) {
	opts := queryOptions{Concise: concise}

	for _, raw := range rawFilters {
		f, err := query.ParseFilter(raw)
		if err != nil {
			return queryOptions{}, err
		}
		opts.Filters = opts.Filters.Add(f.Name, f.Value)
	}

	box, err := parseBoundingBox(bbox)
	if err != nil {
		return queryOptions{}, err
	}
	opts.BoundingBox = box

	return opts, nil
}

// parseBoundingBox parses comma-separated coordinates. The coordinate count
// is checked by query.Build.
func parseBoundingBox(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	box := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &query.ParameterError{Param: "bounding_box", Reason: fmt.Sprintf("bad coordinate %q", p)}
		}
		box = append(box, f)
	}
	return box, nil
}

// params returns request parameters for the first page of keywords.
func (a *app) params(keywords string, opts queryOptions) query.Params {
	return query.Params{
		Keywords:    keywords,
		PageSize:    pagination.PageSize,
		APIKey:      a.cfg.APIKey,
		Filters:     opts.Filters,
		BoundingBox: opts.BoundingBox,
		Concise:     opts.Concise,
		BaseURL:     a.cfg.BaseURL,
	}
}

func (a *app) newClient() (*client.Client, error) {
	return client.New(client.Config{
		UserAgent: a.cfg.UserAgent,
		Timeout:   a.cfg.Timeout,
	})
}

// newPacer returns the configured pacer and a function releasing its
// resources. Without a Redis URL the pacer is the in-process fixed delay.
func (a *app) newPacer(ctx context.Context) (ratelimit.Pacer, func(), error) {
	if a.cfg.RedisURL == "" {
		return ratelimit.NewFixedDelay(a.cfg.Delay), func() {}, nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	pacer, err := ratelimit.NewRedisPacer(rdb, ratelimit.KeyForAPIKey(a.cfg.APIKey), a.cfg.Delay, logging.NewLogger("pacer"))
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	return pacer, func() { rdb.Close() }, nil
}

// searcher runs complete searches with shared client and pacer.
type searcher struct {
	app    *app
	client *client.Client
	pacer  ratelimit.Pacer
	close  func()
}

func (a *app) newSearcher(ctx context.Context) (*searcher, error) {
	c, err := a.newClient()
	if err != nil {
		return nil, err
	}
	pacer, release, err := a.newPacer(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	return &searcher{
		app:    a,
		client: c,
		pacer:  pacer,
		close: func() {
			release()
			c.Close()
		},
	}, nil
}

// Search runs one paginated search.
func (s *searcher) Search(ctx context.Context, keywords string, opts queryOptions) (*results.Accumulator, error) {
	agg, err := pagination.NewAggregator(s.client, pagination.Config{
		APIKey:      s.app.cfg.APIKey,
		BaseURL:     s.app.cfg.BaseURL,
		Filters:     opts.Filters,
		BoundingBox: opts.BoundingBox,
		Concise:     opts.Concise,
		Pacer:       s.pacer,
		MaxPages:    s.app.cfg.MaxPages,
	})
	if err != nil {
		return nil, err
	}
	return agg.SearchAll(ctx, keywords)
}

func (s *searcher) Close() {
	s.close()
}
