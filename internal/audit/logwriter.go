package audit

import "go.uber.org/zap"

// LogWriter is a fallback Writer for local development and tests, when
// no ClickHouse sink is configured.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event Event) {
	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.Time("occurred_at", event.OccurredAt),
		zap.String("tenant", event.Tenant),
		zap.String("role", event.Role),
		zap.String("tool", event.Tool),
		zap.String("arguments_digest", event.ArgumentsDigest),
		zap.String("outcome", string(event.Outcome)),
		zap.Float64("duration_ms", event.DurationMS),
	}
	if event.SQLDigest != nil {
		fields = append(fields, zap.String("sql_digest", *event.SQLDigest))
	}
	if event.RowsAffected != nil {
		fields = append(fields, zap.Int64("rows_affected", *event.RowsAffected))
	}
	if event.ParentEventID != nil {
		fields = append(fields, zap.String("parent_event_id", *event.ParentEventID))
	}
	w.logger.Info("audit_event", fields...)
}

func (w *LogWriter) Close() {}
