package api

import (
	"net/http"
	"regexp"
)

var sortPattern = regexp.MustCompile(`^(name|size|lastModifiedDateTime)( (asc|desc))?$`)

// List serves GET /api/: file metadata when path names a file, otherwise one
// page of folder children with optional paging token and sort clause.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	p := cleanPath(r.URL.Query().Get("path"))

	sort := r.URL.Query().Get("sort")
	if sort != "" && !sortPattern.MatchString(sort) {
		writeError(w, http.StatusBadRequest, "invalid sort clause")
		return
	}

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
	if ac.needsToken() && !a.codec.Verify(token, ac.decision.Password, item.ID) {
		a.deny(w, r, ac)
		return
	}

	if !item.IsFolder() {
		resp, err := a.itemResponse(item, ac.mintPassword())
		if err != nil {
			a.logger.Error("encoding item failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ListResponse{File: resp})
		return
	}

	page, err := a.drive.Children(r.Context(), p, a.maxItems, r.URL.Query().Get("next"), sort)
	if err != nil {
		mapError(w, err)
		return
	}

	value := make([]*ItemResponse, 0, len(page.Items))
	for _, child := range page.Items {
		resp, err := a.itemResponse(child, ac.mintPassword())
		if err != nil {
			a.logger.Error("encoding item failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		value = append(value, resp)
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Folder: &FolderListing{Value: value},
		Next:   page.NextToken,
	})
}
