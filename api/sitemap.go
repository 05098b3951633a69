package api

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/vvbbnn00/onedrive-index/sitemap"
)

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// generateTimeout bounds a background sitemap crawl.
const generateTimeout = 10 * time.Minute

// SitemapXML serves GET /sitemap.xml from the cached crawl result. A cache
// miss returns an empty document and kicks off generation in the background;
// the next request picks up the result.
func (a *API) SitemapXML(w http.ResponseWriter, r *http.Request) {
	if a.sitemap == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	entries, ok, err := a.sitemap.Cached(r.Context())
	if err != nil {
		a.logger.Error("reading sitemap cache failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
			defer cancel()
			if _, err := a.sitemap.Generate(ctx); err != nil &&
				!errors.Is(err, sitemap.ErrGenerationInProgress) {
				a.logger.Error("sitemap generation failed", "error", err)
			}
		}()
	}

	scheme := "http"
	if requestIsSecure(r) {
		scheme = "https"
	}
	set := sitemapURLSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(entries)),
	}
	for _, e := range entries {
		loc := url.URL{Scheme: scheme, Host: r.Host, Path: e.Path}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     loc.String(),
			LastMod: e.LastModified.UTC().Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", a.cacheControl)
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(set); err != nil {
		a.logger.Warn("encoding sitemap failed", "error", err)
	}
}
