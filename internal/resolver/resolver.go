// Package resolver implements the fetch/cache/serve decision logic:
// given a mapping identifier it returns a cached response while fresh
// and refetches from the target once the TTL has passed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hfi/authproxy/internal/mapping"
	"github.com/hfi/authproxy/internal/metrics"
)

// ErrUnknownMapping means no mapping exists for the identifier. It is
// not a failure; the request layer routes it to its fallback handling.
var ErrUnknownMapping = errors.New("resolver: unknown mapping id")

// UpstreamStatusError reports a target that answered with a client or
// server error status. The response is never cached.
type UpstreamStatusError struct {
	Code int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

// Result is a resolved response body ready to hand back to the caller.
// Cached reports whether it came from a fresh cache entry rather than
// an upstream fetch.
type Result struct {
	Body        []byte
	ContentType string
	Cached      bool
}

// Resolver turns mapping identifiers into response bodies. It owns the
// cache and is the only component that talks to the fetch capability.
type Resolver struct {
	store   mapping.Store
	cache   *Cache
	fetcher Fetcher

	// now is the freshness clock, swappable in tests.
	now func() time.Time
}

// New wires a resolver from its dependencies.
func New(store mapping.Store, cache *Cache, fetcher Fetcher) *Resolver {
	return &Resolver{
		store:   store,
		cache:   cache,
		fetcher: fetcher,
		now:     time.Now,
	}
}

// Resolve looks up id and returns a response for it. A fresh cache
// entry is returned without touching the upstream. A missing or stale
// entry always blocks on a full refetch; stale bodies are never served.
//
// Concurrent resolves of the same cold id may each fetch; whichever
// write lands last wins the cache slot. That is fine because every
// entry derives from the same upstream resource.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Result, error) {
	m, ok := r.store.Lookup(id)
	if !ok {
		return nil, ErrUnknownMapping
	}

	if e, ok := r.cache.Get(id); ok && e.Fresh(r.now()) {
		metrics.CacheHitsTotal.Inc()
		return &Result{Body: e.Body, ContentType: e.ContentType, Cached: true}, nil
	}
	metrics.CacheMissesTotal.Inc()

	start := time.Now()
	up, err := r.fetcher.Fetch(ctx, m)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// Full detail stays in the operator log; callers surface a
		// generic message to end users.
		metrics.RecordUpstreamError("transport")
		log.Error().Err(err).Str("id", id).Msg("upstream fetch failed")
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}

	if up.StatusCode >= 400 {
		// Error statuses are not cache-worthy and are not remembered:
		// the next resolve retries the fetch.
		metrics.RecordUpstreamError("status")
		log.Warn().Int("status", up.StatusCode).Str("id", id).Msg("upstream returned error status")
		return nil, &UpstreamStatusError{Code: up.StatusCode}
	}

	r.cache.Put(id, &Entry{
		ExpiresAt:   r.now().Add(m.TTL()),
		Body:        up.Body,
		ContentType: up.ContentType,
	})

	return &Result{Body: up.Body, ContentType: up.ContentType}, nil
}
