package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, companyID, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("company_id", companyID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogEntryAction(ctx context.Context, companyID, userID, action, entryID, status, details string) {
	al.LogAction(ctx, companyID, userID, action, "time_entry", entryID, status, details)
}

func (al *Logger) LogStatsRecompute(ctx context.Context, companyID, userID, targetUserID, status, details string) {
	al.LogAction(ctx, companyID, userID, "stats_recompute", "user_stats", targetUserID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, companyID, userID, reason string) {
	al.LogAction(ctx, companyID, userID, "access_denied", "api", "", "denied", reason)
}
