package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vvbbnn00/onedrive-index/drive"
)

// ErrorResponse is the JSON body for every non-2xx response. AuthPath and
// NeedAuth are set on authorization challenges so the client can render the
// right password prompt; the expected password itself is never echoed.
type ErrorResponse struct {
	Error    string `json:"error"`
	AuthPath string `json:"authPath,omitempty"`
	NeedAuth bool   `json:"needAuth,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeChallenge sends the 401 that tells the client which gate to prompt
// for.
func writeChallenge(w http.ResponseWriter, gatePath string) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:    "password required",
		AuthPath: gatePath,
		NeedAuth: true,
	})
}

// mapError translates drive errors at the HTTP boundary. Upstream failures
// are reported as such, never cached, and carry no upstream detail beyond
// the message.
func mapError(w http.ResponseWriter, err error) {
	var upstream *drive.UpstreamError
	switch {
	case errors.Is(err, drive.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, drive.ErrNoAccessToken):
		writeError(w, http.StatusInternalServerError, "drive access token not configured")
	case errors.As(err, &upstream):
		writeError(w, http.StatusInternalServerError, "upstream drive error")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
