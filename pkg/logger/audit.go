package logger

import (
	"context"
	"log/slog"
)

// Audit event types
const (
	EventRegister          = "register"
	EventLogin             = "login"
	EventLogout            = "logout"
	EventEmailVerified     = "email_verified"
	EventPasswordReset     = "password_reset"
	EventEmailChangeStart  = "email_change_requested"
	EventEmailChangeCommit = "email_change_committed"
	EventAccountDeleted    = "account_deleted"
	EventFolderTrashed     = "folder_trashed"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string // public id
	Email         string // masked before logging
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit records to the application log under the
// "audit" message. Failures log at warn.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String("meta_"+k, v))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", slog.Attr{Key: "audit", Value: slog.GroupValue(attrs...)})
}
