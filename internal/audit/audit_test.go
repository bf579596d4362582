package audit

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestClickHouseWriterDropsWhenBufferFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	w := &ClickHouseWriter{
		buffer:  make(chan Event, 1),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  zap.New(core),
	}

	w.Write(Event{EventID: "ev-1"})
	w.Write(Event{EventID: "ev-2"})

	if got := logs.FilterMessage("audit buffer full, dropping event").Len(); got != 1 {
		t.Fatalf("expected exactly one drop warning, got %d", got)
	}
	if len(w.buffer) != 1 {
		t.Fatalf("expected buffer to retain the first event, len=%d", len(w.buffer))
	}
}

func TestLogWriterEmitsOutcomeAndDigests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := NewLogWriter(zap.New(core))

	sqlDigest := "abc123"
	rows := int64(3)
	w.Write(Event{
		EventID:         "ev-1",
		OccurredAt:      time.Unix(0, 0),
		Tenant:          "acme",
		Role:            "support_agent",
		Tool:            "updateTicket",
		ArgumentsDigest: "deadbeef",
		Outcome:         OutcomeExecuted,
		SQLDigest:       &sqlDigest,
		RowsAffected:    &rows,
		DurationMS:      12.5,
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["outcome"] != string(OutcomeExecuted) {
		t.Fatalf("expected outcome=%s, got %v", OutcomeExecuted, fields["outcome"])
	}
	if fields["sql_digest"] != sqlDigest {
		t.Fatalf("expected sql_digest to be logged, got %v", fields["sql_digest"])
	}
	if fields["rows_affected"] != int64(3) {
		t.Fatalf("expected rows_affected=3, got %v", fields["rows_affected"])
	}
}

func TestLogWriterOmitsNilOptionalFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := NewLogWriter(zap.New(core))

	w.Write(Event{
		EventID: "ev-2",
		Outcome: OutcomeDenied,
	})

	fields := logs.All()[0].ContextMap()
	if _, ok := fields["sql_digest"]; ok {
		t.Fatal("expected sql_digest to be omitted for a denied outcome")
	}
	if _, ok := fields["rows_affected"]; ok {
		t.Fatal("expected rows_affected to be omitted when nil")
	}
}
