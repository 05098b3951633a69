package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditChallenge       AuditEvent = "auth_challenge"
	AuditUnlockSuccess   AuditEvent = "unlock_success"
	AuditUnlockFailure   AuditEvent = "unlock_failure"
	AuditLogout          AuditEvent = "logout"
	AuditSentinelMissing AuditEvent = "sentinel_missing"
	AuditRateLimited     AuditEvent = "verify_rate_limited"
	AuditUpstreamError   AuditEvent = "upstream_error"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// Gate paths are safe to log; passwords, tokens and session ids are not and
// must never be passed in.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logGate is a convenience for events scoped to one gate.
func (al *auditLogger) logGate(event AuditEvent, r *http.Request, gatePath string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("gate", gatePath),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
