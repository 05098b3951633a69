// Package api exposes the drive index over HTTP: listing, raw download,
// metadata by id, search, the sitemap and the password verification
// endpoint that unlocks protected subtrees into a cookie session.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/vvbbnn00/onedrive-index/auth"
	"github.com/vvbbnn00/onedrive-index/drive"
	"github.com/vvbbnn00/onedrive-index/sitemap"
)

//go:embed openapi.yaml
var openapiSpec []byte

// defaultCacheControl is the edge-cache policy for responses that involved
// no protected-route decision.
const defaultCacheControl = "max-age=600, s-maxage=1800, stale-while-revalidate"

// API holds the dependencies needed by the REST handlers.
type API struct {
	drive       *drive.Client
	classifier  *auth.Classifier
	resolver    *auth.Resolver
	gate        *auth.Gate
	sessions    *auth.Sessions
	codec       *auth.Codec
	idCipher    *auth.IDCipher
	sitemap     *sitemap.Generator
	rateLimiter *verifyRateLimiter
	audit       *auditLogger
	logger      *slog.Logger

	cacheControl string
	maxItems     int
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for handlers and audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger.With("component", "api")
		a.audit = newAuditLogger(logger)
	}
}

// WithCacheControl overrides the default edge Cache-Control header for
// unprotected responses.
func WithCacheControl(header string) Option {
	return func(a *API) {
		a.cacheControl = header
	}
}

// WithMaxItems sets the listing and search page size.
func WithMaxItems(n int) Option {
	return func(a *API) {
		if n > 0 {
			a.maxItems = n
		}
	}
}

// WithSitemap enables the /sitemap.xml endpoint.
func WithSitemap(g *sitemap.Generator) Option {
	return func(a *API) {
		a.sitemap = g
	}
}

// New creates a new API instance.
func New(drv *drive.Client, classifier *auth.Classifier, resolver *auth.Resolver,
	sessions *auth.Sessions, codec *auth.Codec, idCipher *auth.IDCipher, opts ...Option) *API {
	a := &API{
		drive:        drv,
		classifier:   classifier,
		resolver:     resolver,
		gate:         auth.NewGate(classifier, resolver),
		sessions:     sessions,
		codec:        codec,
		idCipher:     idCipher,
		rateLimiter:  newVerifyRateLimiter(),
		cacheControl: defaultCacheControl,
		maxItems:     100,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		a.logger = logger.With("component", "api")
		a.audit = newAuditLogger(logger)
	}
	return a
}

// Close stops the API's background workers. The HTTP handlers remain usable
// afterwards, but lockout records stop being garbage-collected.
func (a *API) Close() error {
	a.rateLimiter.stop()
	return nil
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Get("/sitemap.xml", a.SitemapXML)

	r.Route("/api", func(r chi.Router) {
		r.MethodNotAllowed(methodNotAllowed)
		r.Get("/", a.List)
		r.Get("/raw", a.Raw)
		r.Get("/raw/", a.Raw)
		r.Get("/name/{name}", a.Name)
		r.Get("/item", a.ItemMeta)
		r.Get("/item/", a.ItemMeta)
		r.Get("/search", a.Search)
		r.Get("/search/", a.Search)
		r.Post("/verify", a.Verify)
		r.Delete("/verify", a.Logout)
		r.Post("/verify/", a.Verify)
		r.Delete("/verify/", a.Logout)
	})

	return r
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
