package audit

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseWriter writes audit events asynchronously. Write is
// non-blocking — events are buffered and batch-inserted by a background
// goroutine so a slow or unavailable ClickHouse instance never stalls the
// request path, against the audit-event shape spec.md §6 defines.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan Event
	done    chan struct{}
	flushed chan struct{}
	logger  *zap.Logger
}

// NewClickHouseWriter opens a ClickHouse connection from dsn and starts
// the background flush loop.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan Event, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
	go w.flushLoop()
	return w, nil
}

// Write queues event for async insertion, dropping it (and logging the
// drop) if the buffer is full rather than blocking the pipeline.
func (w *ClickHouseWriter) Write(event Event) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("audit buffer full, dropping event", zap.String("event_id", event.EventID))
	}
}

// Close signals the flush loop to drain the buffer and waits for its final
// flush. Write still queues events after Close; those are never flushed.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(events []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO audit_events (
			event_id, occurred_at, tenant, role, tool, arguments_digest,
			outcome, sql_digest, rows_affected, duration_ms, parent_event_id
		)
	`)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		sqlDigest := ""
		if e.SQLDigest != nil {
			sqlDigest = *e.SQLDigest
		}
		var rowsAffected int64
		if e.RowsAffected != nil {
			rowsAffected = *e.RowsAffected
		}
		parentID := ""
		if e.ParentEventID != nil {
			parentID = *e.ParentEventID
		}

		if err := batch.Append(
			e.EventID,
			e.OccurredAt,
			e.Tenant,
			e.Role,
			e.Tool,
			e.ArgumentsDigest,
			string(e.Outcome),
			sqlDigest,
			rowsAffected,
			e.DurationMS,
			parentID,
		); err != nil {
			w.logger.Error("clickhouse append event failed", zap.String("event_id", e.EventID), zap.Error(err))
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed", zap.Int("batch_size", len(events)), zap.Error(err))
	}
}
