package api

import (
	"net/http"
	"strings"

	"github.com/vvbbnn00/onedrive-index/auth"
)

// Search serves GET /api/search/. Results under a locked gate the caller has
// not unlocked are filtered out entirely, so search cannot be used to probe
// protected subtrees.
func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing search query")
		return
	}

	items, err := a.drive.Search(r.Context(), query, a.maxItems)
	if err != nil {
		mapError(w, err)
		return
	}

	var (
		sess        auth.SessionRecord
		sessLoaded  bool
		gateTouched bool
	)
	results := make([]*ItemResponse, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Name, auth.SentinelName) {
			continue
		}
		abs := a.itemAbsPath(item)
		if a.classifier.Protected(abs) {
			gateTouched = true
			decision := a.gate.Check(r.Context(), abs)
			switch decision.Status {
			case auth.StatusOpen:
			case auth.StatusLocked:
				if !sessLoaded {
					s, err := a.sessions.GetOrCreate(w, r)
					if err != nil {
						a.logger.Error("session lookup failed", "error", err)
						writeError(w, http.StatusInternalServerError, "session unavailable")
						return
					}
					sess, sessLoaded = s, true
				}
				if !decision.Unlocked(sess) {
					continue
				}
			default:
				// Misconfigured or unresolvable gates hide their subtree.
				continue
			}
		}

		resp, err := a.itemResponse(item, "")
		if err != nil {
			a.logger.Error("encoding item failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		results = append(results, resp)
	}

	if gateTouched {
		markNoCache(w)
	} else {
		w.Header().Set("Cache-Control", a.cacheControl)
	}
	writeJSON(w, http.StatusOK, SearchResponse{Value: results})
}
