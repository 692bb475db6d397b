package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/bilifeed/pkg/cache"
	"github.com/umputun/bilifeed/pkg/domain"
)

// Cache is the read/write-through layer used by the fetcher, nil disables
// caching. The fetcher is the only writer.
type Cache interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
	Put(ctx context.Context, key string, posts []domain.Post, ttlMinutes int) error
}

// Fetcher retrieves the followed-creator feed page by page, newest first.
// Pages are requested sequentially, the upstream API has no random access.
type Fetcher struct {
	client *Client
	cache  Cache
	auth   Auth
	now    func() time.Time
}

// Request describes one fetch operation
type Request struct {
	Type            string    // feed type filter: all, video, pgc, article
	Pages           int       // max pages to fetch
	TimeLowerBound  time.Time // stop once a page's oldest post predates this, zero disables
	TargetCreators  []string  // restrict to these creator ids, empty keeps everything
	CacheTTLMinutes int
	Interval        time.Duration      // pause between page requests
	Pause           func(page int) bool // interactive continue decision before the next page, nil always continues
}

// NewFetcher creates a fetcher, pass a nil cache to disable caching
func NewFetcher(p ClientParams, store Cache) *Fetcher {
	return &Fetcher{
		client: NewClient(p),
		cache:  store,
		auth:   p.Auth,
		now:    time.Now,
	}
}

// cacheKey derives the entry key from the request shape and the
// authenticated principal
func (f *Fetcher) cacheKey(req Request) string {
	return cache.Key(
		req.Type,
		"pages:"+strconv.Itoa(req.Pages),
		f.client.endpoint,
		strings.Join(req.TargetCreators, ","),
		f.auth.Principal(),
	)
}

// Fetch returns normalized posts for the request, reading through the cache
// when one is configured. A page failure aborts the whole operation so the
// caller never mistakes a truncated result for "no more data". The returned
// warnings are non-fatal conditions worth surfacing.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (posts []domain.Post, warnings []string, err error) {
	if f.auth.Empty() {
		return nil, nil, domain.NewError(domain.ErrAuth, "fetch feed", errors.New("no cookie credentials provided"))
	}
	if req.Pages < 1 {
		req.Pages = 1
	}

	key := f.cacheKey(req)
	if f.cache != nil {
		entry, getErr := f.cache.Get(ctx, key)
		if getErr != nil {
			warnings = append(warnings, fmt.Sprintf("cache read failed, fetching live: %v", getErr))
		}
		if entry != nil && entry.Valid(f.now()) {
			lgr.Printf("[INFO] cache hit for key %s, %d posts", key[:12], len(entry.Posts))
			return entry.Posts, warnings, nil
		}
	}

	posts, err = f.fetchLive(ctx, req)
	if err != nil {
		return nil, warnings, err
	}

	if f.cache != nil && len(posts) > 0 {
		if putErr := f.cache.Put(ctx, key, posts, req.CacheTTLMinutes); putErr != nil {
			warnings = append(warnings, fmt.Sprintf("cache write failed: %v", putErr))
		}
	}

	return posts, warnings, nil
}

// fetchLive walks pages until max pages, upstream exhaustion, the time
// lower bound is crossed or the pause callback declines. The time-bound
// stop assumes the feed is reverse-chronological, out-of-order pages (e.g.
// pinned items) could truncate early.
func (f *Fetcher) fetchLive(ctx context.Context, req Request) ([]domain.Post, error) {
	targets := map[string]struct{}{}
	for _, id := range req.TargetCreators {
		if id = strings.TrimSpace(id); id != "" {
			targets[id] = struct{}{}
		}
	}

	seen := map[string]struct{}{}
	var collected []domain.Post
	offset, baseline := "", ""

	for page := 1; page <= req.Pages; page++ {
		resp, err := f.client.FetchPage(ctx, req.Type, offset, baseline)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		pagePosts, oldest := normalizeItems(resp.Data.Items, seen)
		for _, post := range pagePosts {
			if len(targets) > 0 {
				if _, ok := targets[post.CreatorID]; !ok {
					continue
				}
			}
			collected = append(collected, post)
		}

		lgr.Printf("[INFO] page %d: %d items, has_more=%v", page, len(resp.Data.Items), resp.Data.HasMore)

		offset = resp.Data.Offset
		if resp.Data.UpdateBaseline != "" {
			baseline = resp.Data.UpdateBaseline
		}

		if !resp.Data.HasMore {
			break
		}
		if !req.TimeLowerBound.IsZero() && !oldest.IsZero() && oldest.Before(req.TimeLowerBound) {
			lgr.Printf("[DEBUG] page %d oldest post %s predates lower bound, stopping", page, oldest.Format(time.RFC3339))
			break
		}
		if req.Pause != nil && page < req.Pages && !req.Pause(page) {
			lgr.Printf("[INFO] fetch paused by caller after page %d", page)
			break
		}
		if req.Interval > 0 && page < req.Pages {
			select {
			case <-time.After(req.Interval):
			case <-ctx.Done():
				return nil, domain.NewError(domain.ErrNetwork, "fetch feed", ctx.Err())
			}
		}
	}

	return collected, nil
}
