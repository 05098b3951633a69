package api

import (
	"net/http"
	"regexp"
)

// Graph item ids are alphanumeric with an optional "!" separator on
// personal drives. Anything else never reaches the upstream.
var itemIDPattern = regexp.MustCompile(`^[a-zA-Z0-9!]+$`)

// ItemMeta serves GET /api/item/: item metadata by encrypted id. The gate is
// evaluated on the item's mapped drive path, so an id cannot be used to
// bypass route protection.
func (a *API) ItemMeta(w http.ResponseWriter, r *http.Request) {
	encID := r.URL.Query().Get("id")
	if encID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	rawID, err := a.idCipher.Decrypt(encID)
	if err != nil || !itemIDPattern.MatchString(rawID) {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := a.drive.ItemByID(r.Context(), rawID)
	if err != nil {
		mapError(w, err)
		return
	}

	ac, ok := a.checkGate(w, r, a.itemAbsPath(item))
	if !ok {
		return
	}
	token := protectedToken(r)
	if ac.needsToken() {
		if token == "" || !a.codec.Verify(token, ac.decision.Password, item.ID) {
			a.deny(w, r, ac)
			return
		}
	}

	resp, err := a.itemResponse(item, ac.mintPassword())
	if err != nil {
		a.logger.Error("encoding item failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
