package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vvbbnn00/onedrive-index/drive"
	"github.com/vvbbnn00/onedrive-index/kv"
)

const (
	// sentinelCacheTTL bounds how long a fetched (or confirmed-absent)
	// sentinel stays authoritative. Rotating a password takes effect once
	// this window has passed.
	sentinelCacheTTL = 600 * time.Second
	// sentinelCacheKeyPrefix namespaces sentinel entries within the cache.
	sentinelCacheKeyPrefix = "TOKEN:"
	// absentMarker records a confirmed upstream 404 so that repeated auth
	// checks do not hammer the drive API.
	absentMarker = "null"
	// maxSentinelSize caps how much of a sentinel file is read.
	maxSentinelSize = 4096
)

// Outcome classifies a sentinel resolution. The three cases are structurally
// distinct so that callers never infer "no password set" from a nil check.
type Outcome int

const (
	// OutcomeFound means the sentinel exists and its content was read.
	OutcomeFound Outcome = iota
	// OutcomeNotFound means the drive definitively has no sentinel file.
	OutcomeNotFound
	// OutcomeUnavailable means a transient upstream failure; nothing was
	// cached and the next request will retry.
	OutcomeUnavailable
)

// Result is the outcome of resolving one sentinel path.
type Result struct {
	Outcome  Outcome
	Password string
}

// ContentFetcher is the slice of the drive client the resolver needs.
type ContentFetcher interface {
	Content(ctx context.Context, path string, maxSize int64) ([]byte, error)
}

// Resolver fetches gate sentinel files, caching both their content and
// confirmed absence in the key-value store.
type Resolver struct {
	cache  kv.Store
	drive  ContentFetcher
	ttl    time.Duration
	logger *slog.Logger
}

// NewResolver creates a resolver. cache should be namespaced under the
// site's cache prefix.
func NewResolver(cache kv.Store, fetcher ContentFetcher, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:  cache,
		drive:  fetcher,
		ttl:    sentinelCacheTTL,
		logger: logger.With("component", "auth.resolver"),
	}
}

// Resolve returns the sentinel content for sentinelPath. Cache hits
// (including cached absence) never touch the upstream. Upstream not-found is
// cached as a definitive negative; any other upstream failure is returned as
// OutcomeUnavailable and never cached, so the next request retries.
func (r *Resolver) Resolve(ctx context.Context, sentinelPath string) Result {
	key := sentinelCacheKeyPrefix + sentinelPath

	cached, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		// A cache outage degrades to an upstream fetch.
		r.logger.Warn("sentinel cache read failed", "path", sentinelPath, "error", err)
	} else if ok {
		if cached == absentMarker {
			return Result{Outcome: OutcomeNotFound}
		}
		return Result{Outcome: OutcomeFound, Password: cached}
	}

	data, err := r.drive.Content(ctx, sentinelPath, maxSentinelSize)
	if errors.Is(err, drive.ErrNotFound) {
		if cacheErr := r.cache.Set(ctx, key, absentMarker, r.ttl); cacheErr != nil {
			r.logger.Warn("caching sentinel absence failed", "path", sentinelPath, "error", cacheErr)
		}
		return Result{Outcome: OutcomeNotFound}
	}
	if err != nil {
		r.logger.Warn("sentinel fetch failed", "path", sentinelPath, "error", err)
		return Result{Outcome: OutcomeUnavailable}
	}

	password := strings.TrimSpace(string(data))
	if cacheErr := r.cache.Set(ctx, key, password, r.ttl); cacheErr != nil {
		r.logger.Warn("caching sentinel failed", "path", sentinelPath, "error", cacheErr)
	}
	return Result{Outcome: OutcomeFound, Password: password}
}

// ResolveFirst resolves candidates in order and returns the first Found
// result together with its sentinel path. Selection order is the candidate
// order (nearest ancestor first), never fetch completion order. When nothing
// is found, OutcomeUnavailable wins over OutcomeNotFound so that a transient
// failure is not mistaken for a missing password file.
func (r *Resolver) ResolveFirst(ctx context.Context, candidates []string) (Result, string) {
	unavailable := false
	for _, path := range candidates {
		res := r.Resolve(ctx, path)
		switch res.Outcome {
		case OutcomeFound:
			return res, path
		case OutcomeUnavailable:
			unavailable = true
		}
	}
	if unavailable {
		return Result{Outcome: OutcomeUnavailable}, ""
	}
	return Result{Outcome: OutcomeNotFound}, ""
}
