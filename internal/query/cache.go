package query

import (
	"context"
	"encoding/json"
	"log/slog"

	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/tender"

	"golang.org/x/sync/singleflight"
)

// Cache stores encoded tender pages by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Invalidate(ctx context.Context) error
}

// CachedFetcher collapses identical concurrent queries into one request and
// serves repeated ones from the cache. Cache failures are logged and
// otherwise ignored.
type CachedFetcher struct {
	log   *slog.Logger
	next  Fetcher
	cache Cache
	group singleflight.Group
}

// NewCachedFetcher wraps next. cache may be nil, which leaves only the
// in-flight de-duplication.
func NewCachedFetcher(log *slog.Logger, next Fetcher, cache Cache) *CachedFetcher {
	return &CachedFetcher{
		log:   log.With(slog.String("component", "query.cache")),
		next:  next,
		cache: cache,
	}
}

func (f *CachedFetcher) ListTenders(ctx context.Context, q tender.Query) ([]tender.Tender, error) {
	return f.do(ctx, "list?"+q.Values(false).Encode(), q, f.next.ListTenders)
}

func (f *CachedFetcher) SearchTenders(ctx context.Context, q tender.Query) ([]tender.Tender, error) {
	return f.do(ctx, "search?"+q.Values(true).Encode(), q, f.next.SearchTenders)
}

func (f *CachedFetcher) Invalidate(ctx context.Context) error {
	if f.cache == nil {
		return nil
	}
	return f.cache.Invalidate(ctx)
}

type fetchFunc func(ctx context.Context, q tender.Query) ([]tender.Tender, error)

func (f *CachedFetcher) do(ctx context.Context, key string, q tender.Query, fn fetchFunc) ([]tender.Tender, error) {
	if res, ok := f.lookup(ctx, key); ok {
		return res, nil
	}

	// The fetch is shared by every caller waiting on key, so one caller
	// going away must not cancel it. The client timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	v, err, joined := f.group.Do(key, func() (any, error) {
		res, err := fn(shared, q)
		if err != nil {
			return nil, err
		}
		f.store(shared, key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if joined {
		f.log.Debug("shared in-flight fetch", slog.String("key", key))
	}
	return v.([]tender.Tender), nil
}

func (f *CachedFetcher) lookup(ctx context.Context, key string) ([]tender.Tender, bool) {
	if f.cache == nil {
		return nil, false
	}

	data, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		f.log.Warn("cache get failed", slog.String("key", key), sl.Err(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var res []tender.Tender
	if err := json.Unmarshal(data, &res); err != nil {
		f.log.Warn("dropping unreadable cache entry", slog.String("key", key), sl.Err(err))
		return nil, false
	}
	f.log.Debug("cache hit", slog.String("key", key))
	return res, true
}

func (f *CachedFetcher) store(ctx context.Context, key string, res []tender.Tender) {
	if f.cache == nil {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		f.log.Warn("failed to encode page for cache", sl.Err(err))
		return
	}
	if err := f.cache.Set(ctx, key, data); err != nil {
		f.log.Warn("cache set failed", slog.String("key", key), sl.Err(err))
	}
}
