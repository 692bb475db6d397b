// Package pipeline wires the fetch-cache-filter flow and the summarization
// engine behind the two operations the presentation layer consumes.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/bilifeed/pkg/cache"
	"github.com/umputun/bilifeed/pkg/config"
	"github.com/umputun/bilifeed/pkg/domain"
	"github.com/umputun/bilifeed/pkg/feed"
	"github.com/umputun/bilifeed/pkg/filter"
	"github.com/umputun/bilifeed/pkg/summary"
)

// Pipeline owns the posts and creator groups for the lifetime of one run
type Pipeline struct {
	cfg        *config.Config
	fetcher    *feed.Fetcher
	summarizer *summary.Summarizer
	store      *cache.Store // nil when caching disabled
	pause      func(page int) bool
}

// Params configures a pipeline
type Params struct {
	Config *config.Config
	Pause  func(page int) bool // interactive continue decision, nil always continues
}

// New builds a pipeline from validated configuration. Opens the cache store
// when caching is enabled, the caller must Close the pipeline.
func New(p Params) (*Pipeline, error) {
	cfg := p.Config
	if cfg == nil {
		return nil, domain.NewError(domain.ErrConfig, "build pipeline", fmt.Errorf("nil config"))
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		s, err := cache.New(cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		store = s
	}

	auth := feed.Auth{
		Cookie:     cfg.Auth.Cookie,
		SESSDATA:   cfg.Auth.SESSDATA,
		DedeUserID: cfg.Auth.DedeUserID,
		BiliJCT:    cfg.Auth.BiliJCT,
	}

	clientParams := feed.ClientParams{
		Endpoint:    cfg.Feed.Endpoint,
		Features:    cfg.Feed.Features,
		WebLocation: cfg.Feed.WebLocation,
		Timeout:     cfg.Feed.Timeout,
		Auth:        auth,
	}

	var fetcherCache feed.Cache
	if store != nil {
		fetcherCache = store
	}
	lgr.Printf("[DEBUG] pipeline ready, principal %s, cache enabled: %v", feed.Mask(auth.Principal()), store != nil)

	return &Pipeline{
		cfg:        cfg,
		fetcher:    feed.NewFetcher(clientParams, fetcherCache),
		summarizer: summary.New(),
		store:      store,
		pause:      p.Pause,
	}, nil
}

// Close releases the cache store
func (p *Pipeline) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Run fetches the feed (through the cache), filters it and groups posts per
// creator. Warnings are non-fatal conditions, the error is one of the
// run-terminating kinds: auth, network or config.
func (p *Pipeline) Run(ctx context.Context) (groups []domain.CreatorGroup, warnings []string, err error) {
	timeFrom, err := p.cfg.TimeFrom()
	if err != nil {
		return nil, nil, domain.NewError(domain.ErrConfig, "run pipeline", err)
	}
	timeTo, err := p.cfg.TimeTo()
	if err != nil {
		return nil, nil, domain.NewError(domain.ErrConfig, "run pipeline", err)
	}

	var targets []string
	if p.cfg.Feed.QueryMode == "selected_up" {
		targets = p.cfg.Feed.TargetCreators
	}

	req := feed.Request{
		Type:            p.cfg.Feed.Type,
		Pages:           p.cfg.Feed.Pages,
		TimeLowerBound:  timeFrom,
		TargetCreators:  targets,
		CacheTTLMinutes: p.cfg.Cache.TTLMinutes,
		Interval:        p.cfg.Feed.RequestInterval,
	}
	if p.cfg.Feed.Interactive {
		req.Pause = p.pause
	}

	started := time.Now()
	posts, fetchWarnings, err := p.fetcher.Fetch(ctx, req)
	warnings = append(warnings, fetchWarnings...)
	if err != nil {
		return nil, warnings, err
	}
	lgr.Printf("[INFO] fetched %d posts in %v", len(posts), time.Since(started).Round(time.Millisecond))

	groups = filter.Apply(posts, filter.Criteria{
		From:     timeFrom,
		To:       timeTo,
		Keywords: p.cfg.Filter.Keyword,
		SortAsc:  p.cfg.Filter.Sort == "asc",
	})
	lgr.Printf("[INFO] %d creators after filtering", len(groups))

	return groups, warnings, nil
}

// Summarize generates a summary for one creator group using the configured
// provider. Idempotent per identical group and config, provider failures
// come back as warnings with a local fallback result, never an error.
func (p *Pipeline) Summarize(ctx context.Context, group domain.CreatorGroup) (domain.SummaryResult, []string) {
	return p.summarizer.Summarize(ctx, group, p.cfg.Summary)
}
