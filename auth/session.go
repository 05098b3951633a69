package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvbbnn00/onedrive-index/kv"
)

// CookieName is the session cookie delivered to clients.
const CookieName = "NEXT_SESSION_ID"

const (
	// sessionWriteTTL is the record lifetime applied on every write.
	sessionWriteTTL = 24 * time.Hour
	// sessionReadTTL is the extended lifetime applied asynchronously on
	// every successful read.
	sessionReadTTL = 30 * 24 * time.Hour
	// cookieMaxAge outlives the record on purpose: a stale cookie simply
	// resolves to a fresh session.
	cookieMaxAge = 365 * 24 * time.Hour
	// refreshTimeout bounds the background TTL refresh.
	refreshTimeout = 5 * time.Second
)

// SessionRecord is the server-side state referenced by the session cookie.
// PassKeys maps a gate's sentinel path to the verified plaintext password
// the visitor supplied.
type SessionRecord struct {
	ID        string            `json:"id"`
	CreatedAt int64             `json:"createdAt"`
	PassKeys  map[string]string `json:"passKeys,omitempty"`
}

// Sessions stores session records in the key-value store, keyed by the
// opaque session id.
type Sessions struct {
	store  kv.Store
	logger *slog.Logger
}

// NewSessions creates a session store. store should be namespaced under the
// site's session prefix.
func NewSessions(store kv.Store, logger *slog.Logger) *Sessions {
	return &Sessions{
		store:  store,
		logger: logger.With("component", "auth.sessions"),
	}
}

// newSessionID derives an opaque id from the current time and a random
// UUID. The id is a capability secret: it must never be logged.
func newSessionID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return ts + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetOrCreate returns the session referenced by the request cookie, creating
// a fresh one (and setting the cookie) when the cookie is absent or the
// record is missing or unparseable. On a successful read the record's TTL is
// refreshed in the background; the read does not wait for it.
func (s *Sessions) GetOrCreate(w http.ResponseWriter, r *http.Request) (SessionRecord, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return s.create(w, r)
	}

	raw, ok, err := s.store.Get(r.Context(), cookie.Value)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("reading session: %w", err)
	}
	if !ok {
		return s.create(w, r)
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return s.create(w, r)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := s.store.Expire(ctx, rec.ID, sessionReadTTL); err != nil {
			s.logger.Warn("session TTL refresh failed", "error", err)
		}
	}()

	return rec, nil
}

// Update persists the record, preserving its identity, with the write TTL.
func (s *Sessions) Update(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("updating session: empty id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.store.Set(ctx, rec.ID, string(data), sessionWriteTTL); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// Destroy deletes the backing record and clears the cookie.
func (s *Sessions) Destroy(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		if err := s.store.Delete(r.Context(), cookie.Value); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}
	clearSessionCookie(w, r)
	return nil
}

func (s *Sessions) create(w http.ResponseWriter, r *http.Request) (SessionRecord, error) {
	rec := SessionRecord{
		ID:        newSessionID(),
		CreatedAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("encoding session: %w", err)
	}
	if err := s.store.Set(r.Context(), rec.ID, string(data), sessionWriteTTL); err != nil {
		return SessionRecord{}, fmt.Errorf("storing session: %w", err)
	}
	writeSessionCookie(w, r, rec.ID)
	return rec, nil
}

// The Secure attribute follows the request: a cookie marked Secure on a
// plain-HTTP deployment would never be returned by the client, turning
// every request into a fresh session.
func writeSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(cookieMaxAge.Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
