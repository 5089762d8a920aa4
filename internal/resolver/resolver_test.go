package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hfi/authproxy/internal/mapping"
)

// fakeFetcher counts calls and replays a scripted response.
type fakeFetcher struct {
	calls    int
	lastSeen *mapping.Mapping
	upstream *Upstream
	err      error
}

func (f *fakeFetcher) Fetch(_ context.Context, m *mapping.Mapping) (*Upstream, error) {
	f.calls++
	f.lastSeen = m
	if f.err != nil {
		return nil, f.err
	}
	return f.upstream, nil
}

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestResolver(store mapping.Store, f Fetcher) (*Resolver, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := New(store, NewCache(), f)
	r.now = clock.now
	return r, clock
}

func TestResolve_UnknownMapping(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, _ := newTestResolver(mapping.NewMemoryStore(), fetcher)

	_, err := r.Resolve(context.Background(), "never-created")
	if !errors.Is(err, ErrUnknownMapping) {
		t.Fatalf("Resolve returned %v, want ErrUnknownMapping", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0 for unknown id", fetcher.calls)
	}
}

func TestResolve_FreshHitSkipsUpstream(t *testing.T) {
	store := mapping.NewMemoryStore()
	m, err := store.Create(mapping.Definition{
		TargetURL:  "http://example.test/a",
		TTLSeconds: 60,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	fetcher := &fakeFetcher{upstream: &Upstream{
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte("hello"),
	}}
	r, clock := newTestResolver(store, fetcher)

	first, err := r.Resolve(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	if string(first.Body) != "hello" || first.ContentType != "text/html" {
		t.Errorf("first result = %q/%q, want hello/text/html", first.Body, first.ContentType)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetch calls = %d after first resolve, want 1", fetcher.calls)
	}
	if fetcher.lastSeen.Mode != mapping.ModeNone {
		t.Errorf("mode seen by fetcher = %q, want %q", fetcher.lastSeen.Mode, mapping.ModeNone)
	}

	clock.advance(30 * time.Second)
	second, err := r.Resolve(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if string(second.Body) != "hello" {
		t.Errorf("second body = %q, want cached body", second.Body)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d after fresh hit, want still 1", fetcher.calls)
	}
	if first.Cached || !second.Cached {
		t.Errorf("cached flags = %v/%v, want false/true", first.Cached, second.Cached)
	}
}

func TestResolve_ExpiryInstantIsFresh(t *testing.T) {
	store := mapping.NewMemoryStore()
	m, _ := store.Create(mapping.Definition{TargetURL: "http://example.test", TTLSeconds: 60})

	fetcher := &fakeFetcher{upstream: &Upstream{StatusCode: 200, Body: []byte("x")}}
	r, clock := newTestResolver(store, fetcher)

	if _, err := r.Resolve(context.Background(), m.ID); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	// Exactly at the expiry instant the entry still counts as fresh.
	clock.advance(60 * time.Second)
	if _, err := r.Resolve(context.Background(), m.ID); err != nil {
		t.Fatalf("Resolve at expiry instant returned error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d at expiry instant, want 1", fetcher.calls)
	}

	// One tick later it is stale and a refetch happens.
	clock.advance(time.Nanosecond)
	if _, err := r.Resolve(context.Background(), m.ID); err != nil {
		t.Fatalf("Resolve after expiry returned error: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d after expiry, want 2", fetcher.calls)
	}
}

func TestResolve_ZeroTTLWithBasicAuth(t *testing.T) {
	store := mapping.NewMemoryStore()
	m, _ := store.Create(mapping.Definition{
		TargetURL:  "http://example.test",
		Mode:       mapping.ModeBasic,
		Credential: mapping.Credential{Username: "u", Password: "p"},
		TTLSeconds: 0,
	})

	fetcher := &fakeFetcher{upstream: &Upstream{StatusCode: 200, Body: []byte("x")}}
	r, clock := newTestResolver(store, fetcher)

	for i := 1; i <= 3; i++ {
		clock.advance(time.Millisecond)
		if _, err := r.Resolve(context.Background(), m.ID); err != nil {
			t.Fatalf("Resolve #%d returned error: %v", i, err)
		}
		if fetcher.calls != i {
			t.Errorf("fetch calls = %d after resolve #%d, want %d", fetcher.calls, i, i)
		}
	}

	cred := fetcher.lastSeen.Credential
	if cred.Username != "u" || cred.Password != "p" {
		t.Errorf("fetcher saw credentials %q/%q, want u/p", cred.Username, cred.Password)
	}
	if cred.Token != "" {
		t.Errorf("fetcher saw stray bearer token %q", cred.Token)
	}
}

func TestResolve_BearerMapping(t *testing.T) {
	store := mapping.NewMemoryStore()
	m, _ := store.Create(mapping.Definition{
		TargetURL:  "http://example.test",
		Mode:       mapping.ModeBearer,
		Credential: mapping.Credential{Token: "tok123"},
		TTLSeconds: 60,
	})

	fetcher := &fakeFetcher{upstream: &Upstream{StatusCode: 200, Body: []byte("x")}}
	r, _ := newTestResolver(store, fetcher)

	if _, err := r.Resolve(context.Background(), m.ID); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	cred := fetcher.lastSeen.Credential
	if cred.Token != "tok123" {
		t.Errorf("fetcher saw token %q, want tok123", cred.Token)
	}
	if cred.Username != "" || cred.Password != "" {
		t.Errorf("fetcher saw basic credentials %q/%q alongside bearer", cred.Username, cred.Password)
	}
}

func TestResolve_UpstreamErrorStatusNotCached(t *testing.T) {
	store := mapping.NewMemoryStore()
	m, _ := store.Create(mapping.Definition{TargetURL: "http://example.test", TTLSeconds: 60})

	fetcher := &fakeFetcher{upstream: &Upstream{StatusCode: 503, Body: []byte("unavailable")}}
	r, _ := newTestResolver(store, fetcher)

	_, err := r.Resolve(context.Background(), m.ID)
	var statusErr *UpstreamStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Resolve returned %v, want *UpstreamStatusError", err)
	}
	if statusErr.Code != 503 {
		t.Errorf("status = %d, want 503", statusErr.Code)
	}
	if r.cache.Len() != 0 {
		t.Errorf("cache entries = %d after error status, want 0", r.cache.Len())
	}

	// No negative caching: the next resolve retries the fetch.
	if _, err := r.Resolve(context.Background(), m.ID); err == nil {
		t.Fatal("second Resolve unexpectedly succeeded")
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (failure retried)", fetcher.calls)
	}
}

func TestResolve_TransportErrorKeepsCacheUntouched(t *testing.T) {
	store := mapping.NewMemoryStore()
	m, _ := store.Create(mapping.Definition{TargetURL: "http://example.test", TTLSeconds: 10})

	fetcher := &fakeFetcher{upstream: &Upstream{StatusCode: 200, Body: []byte("v1"), ContentType: "text/plain"}}
	r, clock := newTestResolver(store, fetcher)

	if _, err := r.Resolve(context.Background(), m.ID); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	// Entry goes stale, then the upstream becomes unreachable. The stale
	// body must not be served and the old entry must survive untouched.
	clock.advance(time.Minute)
	fetcher.err = errors.New("connection refused")

	_, err := r.Resolve(context.Background(), m.ID)
	if err == nil {
		t.Fatal("Resolve with unreachable upstream unexpectedly succeeded")
	}
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("transport error surfaced as status error: %v", err)
	}

	e, ok := r.cache.Get(m.ID)
	if !ok {
		t.Fatal("cache entry was dropped on transport error")
	}
	if string(e.Body) != "v1" {
		t.Errorf("cache body = %q, want previous body v1", e.Body)
	}
}

func TestResolve_ContentTypePassthrough(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{"json", "application/json"},
		{"absent content type propagates empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mapping.NewMemoryStore()
			m, _ := store.Create(mapping.Definition{TargetURL: "http://example.test", TTLSeconds: 60})

			fetcher := &fakeFetcher{upstream: &Upstream{
				StatusCode:  200,
				ContentType: tt.contentType,
				Body:        []byte("x"),
			}}
			r, _ := newTestResolver(store, fetcher)

			res, err := r.Resolve(context.Background(), m.ID)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if res.ContentType != tt.contentType {
				t.Errorf("content type = %q, want %q", res.ContentType, tt.contentType)
			}
		})
	}
}

func TestResolve_ReplacesStaleEntry(t *testing.T) {
	store := mapping.NewMemoryStore()
	m, _ := store.Create(mapping.Definition{TargetURL: "http://example.test", TTLSeconds: 5})

	fetcher := &fakeFetcher{upstream: &Upstream{StatusCode: 200, Body: []byte("v1")}}
	r, clock := newTestResolver(store, fetcher)

	if _, err := r.Resolve(context.Background(), m.ID); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	clock.advance(time.Minute)
	fetcher.upstream = &Upstream{StatusCode: 200, Body: []byte("v2")}

	res, err := r.Resolve(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if string(res.Body) != "v2" {
		t.Errorf("body = %q, want refetched v2", res.Body)
	}

	e, _ := r.cache.Get(m.ID)
	if string(e.Body) != "v2" {
		t.Errorf("cache body = %q, want v2", e.Body)
	}
	if r.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1 (replacement, not accumulation)", r.cache.Len())
	}
}
