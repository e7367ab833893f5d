package capture

import (
	"sync"
	"time"
)

// #region config
// BufferConfig bounds how long raw entries are retained.
type BufferConfig struct {
	MaxAge time.Duration // entries received longer ago than this are evicted on Add
}

// DefaultBufferConfig returns the standard two minute retention window.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{MaxAge: 2 * time.Minute}
}

// #endregion config

// #region buffer
// Buffer holds recent capture entries in receipt order. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	config  BufferConfig
	entries []Entry
	nextSeq int
}

// NewBuffer creates an empty buffer.
func NewBuffer(config BufferConfig) *Buffer {
	return &Buffer{config: config, nextSeq: 1}
}

// Add stamps the record with a sequence id and the receipt time, appends it,
// then evicts everything received more than MaxAge before at.
func (b *Buffer) Add(rec Record, at time.Time) Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := rec.Entry(at)
	e.SequenceID = b.nextSeq
	b.nextSeq++
	b.entries = append(b.entries, e)
	b.evict(at)
	return e
}

// EntriesSince returns entries received strictly after t, oldest first.
func (b *Buffer) EntriesSince(t time.Time) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if e.ReceivedAt.After(t) {
			out = append(out, e)
		}
	}
	return out
}

// EntriesAfter returns entries whose sequence id is greater than seq, oldest
// first. Entries received at the same instant stay distinguishable.
func (b *Buffer) EntriesAfter(seq int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if e.SequenceID > seq {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the most recently received entry.
func (b *Buffer) Latest() (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return Entry{}, false
	}
	return b.entries[len(b.entries)-1], true
}

// Len reports the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// SetConfig swaps the retention config; takes effect on the next Add.
func (b *Buffer) SetConfig(config BufferConfig) {
	b.mu.Lock()
	b.config = config
	b.mu.Unlock()
}

func (b *Buffer) evict(at time.Time) {
	cutoff := at.Add(-b.config.MaxAge)
	kept := b.entries[:0]
	for _, e := range b.entries {
		if !e.ReceivedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	b.entries = kept
}

// #endregion buffer
