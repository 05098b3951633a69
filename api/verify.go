package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vvbbnn00/onedrive-index/auth"
)

type verifyRequest struct {
	Token string `json:"token"`
	Path  string `json:"path"`
}

// containsTraversal rejects path-traversal sequences before anything else
// looks at the path. The drive API would resolve them; we never forward
// them.
func containsTraversal(p string) bool {
	return strings.Contains(p, "../") || strings.Contains(p, `..\`) || strings.Contains(p, ":")
}

// Verify serves POST /api/verify/: checks the presented password against a
// gate's sentinel file and records the unlock in the caller's session. The
// comparison is against the sentinel plaintext, not the per-file token
// scheme; this is the initial password entry.
func (a *API) Verify(w http.ResponseWriter, r *http.Request) {
	markNoCache(w)

	ip := extractClientIP(r)
	if blocked, retryAfter := a.rateLimiter.check(ip); blocked {
		a.audit.log(AuditRateLimited, r)
		writeRateLimited(w, retryAfter)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.Path == "" {
		writeError(w, http.StatusBadRequest, "token and path are required")
		return
	}
	if containsTraversal(req.Path) {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	sentinel, ok := auth.CanonicalSentinel(req.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "path must reference a password file")
		return
	}

	res := a.resolver.Resolve(r.Context(), sentinel)
	switch res.Outcome {
	case auth.OutcomeUnavailable:
		writeError(w, http.StatusInternalServerError, "could not resolve route protection")
		return
	case auth.OutcomeNotFound:
		// Probing for gates counts as a failure.
		a.rateLimiter.recordFailure(ip)
		a.audit.logGate(AuditSentinelMissing, r, sentinel)
		writeError(w, http.StatusUnauthorized, "no password set for this path")
		return
	}

	if res.Password != req.Token {
		a.rateLimiter.recordFailure(ip)
		a.audit.logGate(AuditUnlockFailure, r, sentinel)
		writeChallenge(w, sentinel)
		return
	}

	sess, err := a.sessions.GetOrCreate(w, r)
	if err != nil {
		a.logger.Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if sess.PassKeys == nil {
		sess.PassKeys = make(map[string]string)
	}
	sess.PassKeys[sentinel] = req.Token
	if err := a.sessions.Update(r.Context(), sess); err != nil {
		a.logger.Error("session update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	a.rateLimiter.recordSuccess(ip)
	a.audit.logGate(AuditUnlockSuccess, r, sentinel)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Logout serves DELETE /api/verify/: destroys the caller's session and
// clears the cookie.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	markNoCache(w)

	if err := a.sessions.Destroy(w, r); err != nil {
		a.logger.Error("session destroy failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	a.audit.log(AuditLogout, r)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
