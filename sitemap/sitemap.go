// Package sitemap crawls the drive tree and maintains a cached list of
// publicly reachable file paths for sitemap rendering.
package sitemap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/vvbbnn00/onedrive-index/auth"
	"github.com/vvbbnn00/onedrive-index/drive"
	"github.com/vvbbnn00/onedrive-index/kv"
)

const (
	// lockKey serialises crawls: only one generation runs at a time.
	lockKey = "CRON:GENERATE_SITEMAP"
	// dataKey holds the JSON-encoded crawl result.
	dataKey = "DATA:SITEMAP"

	lockTTL = time.Hour
	dataTTL = 7 * 24 * time.Hour

	// Crawl hard limits. A drive bigger than this gets a truncated sitemap
	// rather than an unbounded walk.
	maxVisits      = 50000
	maxFiles       = 10000
	maxFolderPages = 10
	pageSize       = 200
)

// ErrGenerationInProgress is returned when another crawl holds the lock.
var ErrGenerationInProgress = errors.New("sitemap generation already in progress")

// Entry is one sitemap row.
type Entry struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"lastModifiedDateTime"`
}

// Lister is the slice of the drive client the crawler needs.
type Lister interface {
	Children(ctx context.Context, p string, top int, skipToken, orderby string) (*drive.Page, error)
}

// Generator crawls the drive and caches the resulting entries.
type Generator struct {
	drive      Lister
	classifier *auth.Classifier
	cache      kv.Store
	logger     *slog.Logger
}

// NewGenerator creates a generator. cache should be namespaced under the
// site's cache prefix.
func NewGenerator(lister Lister, classifier *auth.Classifier, cache kv.Store, logger *slog.Logger) *Generator {
	return &Generator{
		drive:      lister,
		classifier: classifier,
		cache:      cache,
		logger:     logger.With("component", "sitemap"),
	}
}

// Cached returns the stored crawl result, if any.
func (g *Generator) Cached(ctx context.Context) ([]Entry, bool, error) {
	raw, ok, err := g.cache.Get(ctx, dataKey)
	if err != nil || !ok {
		return nil, false, err
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false, fmt.Errorf("decoding sitemap cache: %w", err)
	}
	return entries, true, nil
}

// Generate crawls the drive and stores the result. The lock prevents
// concurrent crawls; a held lock returns ErrGenerationInProgress.
func (g *Generator) Generate(ctx context.Context) ([]Entry, error) {
	held, ok, err := g.cache.Get(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("reading sitemap lock: %w", err)
	}
	if ok && held != "0" {
		return nil, ErrGenerationInProgress
	}
	if err := g.cache.Set(ctx, lockKey, "1", lockTTL); err != nil {
		return nil, fmt.Errorf("acquiring sitemap lock: %w", err)
	}
	defer func() {
		// Releasing means overwriting with a short-lived tombstone so a
		// crashed crawl still frees the lock once lockTTL passes.
		if err := g.cache.Set(context.WithoutCancel(ctx), lockKey, "0", time.Second); err != nil {
			g.logger.Warn("releasing sitemap lock failed", "error", err)
		}
	}()

	start := time.Now()
	entries, err := g.crawl(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding sitemap: %w", err)
	}
	if err := g.cache.Set(ctx, dataKey, string(data), dataTTL); err != nil {
		return nil, fmt.Errorf("storing sitemap: %w", err)
	}

	g.logger.Info("sitemap generated", "entries", len(entries), "took", time.Since(start))
	return entries, nil
}

// crawl walks the tree breadth-first from the root, skipping protected
// subtrees and sentinel files, until the limits are hit.
func (g *Generator) crawl(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	visits := 0
	queue := []string{"/"}

	for len(queue) > 0 && visits < maxVisits && len(entries) < maxFiles {
		dir := queue[0]
		queue = queue[1:]

		skipToken := ""
		for page := 0; page < maxFolderPages; page++ {
			p, err := g.drive.Children(ctx, dir, pageSize, skipToken, "")
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", dir, err)
			}

			for _, item := range p.Items {
				visits++
				if visits >= maxVisits || len(entries) >= maxFiles {
					break
				}
				if strings.EqualFold(item.Name, auth.SentinelName) {
					continue
				}
				child := path.Join(dir, item.Name)
				if g.classifier.Protected(child) {
					continue
				}
				if item.IsFolder() {
					queue = append(queue, child)
					continue
				}
				entries = append(entries, Entry{
					Path:         child,
					LastModified: item.LastModifiedDateTime,
				})
			}

			if p.NextToken == "" {
				break
			}
			skipToken = p.NextToken
		}
	}

	return entries, nil
}
