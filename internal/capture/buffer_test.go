package capture

import (
	"testing"
	"time"
)

func text(s string) *string { return &s }

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestBufferAssignsSequenceIDs(t *testing.T) {
	b := NewBuffer(DefaultBufferConfig())
	e1 := b.Add(Record{Diff: text("a")}, t0)
	e2 := b.Add(Record{Diff: text("b")}, t0.Add(time.Second))

	if e1.SequenceID != 1 || e2.SequenceID != 2 {
		t.Fatalf("expected sequence 1,2 got %d,%d", e1.SequenceID, e2.SequenceID)
	}
	if e1.Label() != "01" {
		t.Fatalf("expected label 01, got %s", e1.Label())
	}
}

func TestBufferEvictsOldEntries(t *testing.T) {
	b := NewBuffer(DefaultBufferConfig())
	b.Add(Record{Diff: text("old")}, t0)
	b.Add(Record{Diff: text("mid")}, t0.Add(90*time.Second))
	b.Add(Record{Diff: text("new")}, t0.Add(150*time.Second))

	if b.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", b.Len())
	}
	now := t0.Add(150 * time.Second)
	for _, e := range b.EntriesAfter(0) {
		if now.Sub(e.ReceivedAt) > 2*time.Minute {
			t.Fatalf("entry %s older than 2m retained", e.Label())
		}
	}
}

func TestBufferEntriesSince(t *testing.T) {
	b := NewBuffer(DefaultBufferConfig())
	b.Add(Record{Diff: text("a")}, t0)
	b.Add(Record{Diff: text("b")}, t0.Add(5*time.Second))
	b.Add(Record{Diff: text("c")}, t0.Add(10*time.Second))

	got := b.EntriesSince(t0.Add(5 * time.Second))
	if len(got) != 1 || got[0].Diff != "c" {
		t.Fatalf("expected only c, got %+v", got)
	}
}

func TestBufferEntriesAfter(t *testing.T) {
	b := NewBuffer(DefaultBufferConfig())
	b.Add(Record{Diff: text("a")}, t0)
	b.Add(Record{Diff: text("b")}, t0.Add(5*time.Second))
	b.Add(Record{Diff: text("c")}, t0.Add(10*time.Second))

	got := b.EntriesAfter(2)
	if len(got) != 1 || got[0].Diff != "c" {
		t.Fatalf("expected only c, got %+v", got)
	}
	if all := b.EntriesAfter(0); len(all) != 3 {
		t.Fatalf("expected 3 entries after 0, got %d", len(all))
	}

	latest, ok := b.Latest()
	if !ok || latest.Diff != "c" {
		t.Fatalf("expected latest c, got %+v", latest)
	}
}

func TestBufferEntriesAfterSameInstant(t *testing.T) {
	b := NewBuffer(DefaultBufferConfig())
	first := b.Add(Record{Diff: text("a")}, t0)
	b.Add(Record{Diff: text("b")}, t0)

	if got := b.EntriesAfter(0); len(got) != 2 {
		t.Fatalf("expected both same-instant entries pending, got %d", len(got))
	}
	got := b.EntriesAfter(first.SequenceID)
	if len(got) != 1 || got[0].Diff != "b" {
		t.Fatalf("expected only b after the first entry, got %+v", got)
	}
}

func TestRecordMissingFieldsBecomeEmpty(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"url":"https://example.com/a","capturedAt":"bogus"}`))
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	e := rec.Entry(t0)
	if e.Diff != "" || e.FullText != "" {
		t.Fatalf("expected empty content, got %q %q", e.Diff, e.FullText)
	}
	if !e.CapturedAt.Equal(t0) {
		t.Fatalf("expected capturedAt fallback to receipt time, got %v", e.CapturedAt)
	}
}

func TestRecordParsesTimestamp(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"diff":"x","fullText":"x","url":"u","capturedAt":"2026-03-01T10:00:03Z"}`))
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	e := rec.Entry(t0.Add(time.Minute))
	if !e.CapturedAt.Equal(t0.Add(3 * time.Second)) {
		t.Fatalf("unexpected capturedAt %v", e.CapturedAt)
	}
}
