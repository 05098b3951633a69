package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/vvbbnn00/onedrive-index/auth"
)

// protectedTokenHeader is the legacy header carrying a per-file token; the
// odpt query parameter is the current equivalent.
const protectedTokenHeader = "od-protected-token"

// access is the outcome of evaluating a gate against the caller's session.
type access struct {
	decision auth.Decision
	session  auth.SessionRecord
	unlocked bool
}

// needsToken reports whether the caller still has to prove knowledge of the
// gate password with a per-file token.
func (ac access) needsToken() bool {
	return ac.decision.Status == auth.StatusLocked && !ac.unlocked
}

// mintPassword returns the gate password to mint per-item tokens with, or
// empty when the caller's session has not unlocked the gate. Token-presenting
// callers do not get fresh tokens minted.
func (ac access) mintPassword() string {
	if ac.decision.Status == auth.StatusLocked && ac.unlocked {
		return ac.decision.Password
	}
	return ""
}

// checkGate evaluates the gate for p and the caller's session, and sets the
// response cache policy: the configured edge header for open paths, no-cache
// for anything that touched a gate. The definitive denials (configuration
// error, upstream failure) are written here and reported as ok=false.
//
// A LOCKED decision without a session unlock is not denied here: handlers
// that accept per-file tokens verify the token against the item id once the
// item is known, and fall back to deny.
func (a *API) checkGate(w http.ResponseWriter, r *http.Request, p string) (access, bool) {
	decision := a.gate.Check(r.Context(), p)
	if decision.Status == auth.StatusOpen {
		w.Header().Set("Cache-Control", a.cacheControl)
		return access{decision: decision}, true
	}
	markNoCache(w)

	switch decision.Status {
	case auth.StatusNoPassword:
		a.audit.logGate(AuditSentinelMissing, r, decision.GatePath)
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:    "no password file configured for this route",
			AuthPath: decision.GatePath,
		})
		return access{}, false
	case auth.StatusUnavailable:
		a.audit.logGate(AuditUpstreamError, r, decision.GatePath)
		writeError(w, http.StatusInternalServerError, "could not resolve route protection")
		return access{}, false
	}

	sess, err := a.sessions.GetOrCreate(w, r)
	if err != nil {
		a.logger.Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return access{}, false
	}

	return access{
		decision: decision,
		session:  sess,
		unlocked: decision.Unlocked(sess),
	}, true
}

// deny writes the 401 challenge for a locked gate.
func (a *API) deny(w http.ResponseWriter, r *http.Request, ac access) {
	a.audit.logGate(AuditChallenge, r, ac.decision.GatePath)
	writeChallenge(w, ac.decision.GatePath)
}

// protectedToken extracts the per-file token from the request: the legacy
// header first, then the odpt query parameter.
func protectedToken(r *http.Request) string {
	if tok := r.Header.Get(protectedTokenHeader); tok != "" {
		return tok
	}
	return r.URL.Query().Get("odpt")
}

// cleanPath canonicalises the client-supplied path query parameter. Dotted
// traversal segments collapse away; the result always starts with a slash.
func cleanPath(q string) string {
	return path.Clean("/" + strings.TrimSpace(q))
}
