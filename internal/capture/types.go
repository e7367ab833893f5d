package capture

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// #region entry
// Entry is one incremental observation of the user's page text.
type Entry struct {
	SequenceID int
	Diff       string
	FullText   string
	URL        string
	CapturedAt time.Time
	ReceivedAt time.Time
}

// Label returns the zero-padded display form of the sequence id.
func (e Entry) Label() string {
	return fmt.Sprintf("%02d", e.SequenceID)
}

// #endregion entry

// #region record
// Record is the wire form of a capture produced by the page observer.
type Record struct {
	Diff       *string `json:"diff"`
	FullText   *string `json:"fullText"`
	URL        string  `json:"url"`
	CapturedAt string  `json:"capturedAt"`
}

// ParseRecord decodes a single JSON capture record.
func ParseRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode capture record: %w", err)
	}
	return rec, nil
}

// Entry converts the record into an Entry. Missing text fields become empty
// content; an unparseable timestamp falls back to the receipt time.
func (r Record) Entry(received time.Time) Entry {
	e := Entry{
		URL:        strings.TrimSpace(r.URL),
		ReceivedAt: received,
		CapturedAt: received,
	}
	if r.Diff != nil {
		e.Diff = *r.Diff
	}
	if r.FullText != nil {
		e.FullText = *r.FullText
	}
	if r.CapturedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, r.CapturedAt); err == nil {
			e.CapturedAt = t
		}
	}
	return e
}

// #endregion record
