package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vvbbnn00/onedrive-index/auth"
)

// proxyMaxSize caps how large a file the service will stream through
// itself; anything bigger is redirected to the pre-authenticated upstream
// URL instead.
const proxyMaxSize = 4 << 20

// Raw serves GET /api/raw/: the file content at the path query parameter,
// either proxied inline (proxy query, small files) or via a 302 to the
// upstream download URL.
func (a *API) Raw(w http.ResponseWriter, r *http.Request) {
	a.serveRaw(w, r, "")
}

// Name serves GET /api/name/{name}: raw download forced as an attachment
// under the given filename.
func (a *API) Name(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing attachment name")
		return
	}
	a.serveRaw(w, r, name)
}

func (a *API) serveRaw(w http.ResponseWriter, r *http.Request, attachmentName string) {
	p := cleanPath(r.URL.Query().Get("path"))

	ac, ok := a.checkGate(w, r, p)
	if !ok {
		return
	}
	token := protectedToken(r)
	if ac.needsToken() && token == "" {
		a.deny(w, r, ac)
		return
	}

	item, err := a.drive.ItemByPath(r.Context(), p)
	if err != nil {
		mapError(w, err)
		return
	}
	// The sentinel file is never downloadable, not even by an unlocked
	// session; pretend it does not exist.
	if strings.EqualFold(item.Name, auth.SentinelName) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if ac.needsToken() && !a.codec.Verify(token, ac.decision.Password, item.ID) {
		a.deny(w, r, ac)
		return
	}

	if item.IsFolder() {
		writeError(w, http.StatusBadRequest, "path is not a file")
		return
	}
	if item.DownloadURL == "" {
		writeError(w, http.StatusInternalServerError, "item has no download URL")
		return
	}

	if attachmentName != "" {
		w.Header().Set("Content-Disposition", "attachment; filename=\""+attachmentName+"\"")
	}

	if r.URL.Query().Has("proxy") && item.Size <= proxyMaxSize {
		a.proxyDownload(w, r, item.DownloadURL)
		return
	}
	http.Redirect(w, r, item.DownloadURL, http.StatusFound)
}

func (a *API) proxyDownload(w http.ResponseWriter, r *http.Request, downloadURL string) {
	resp, err := a.drive.Download(r.Context(), downloadURL)
	if err != nil {
		mapError(w, err)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		a.logger.Warn("streaming download interrupted", "error", err)
	}
}
