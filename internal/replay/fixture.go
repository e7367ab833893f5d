package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/config"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string           `json:"description"`
	Tuning      string           `json:"tuning,omitempty"` // YAML overrides, same format as the tuning file
	RunUntilMs  int64            `json:"run_until_ms"`
	Replies     []string         `json:"replies"`
	Events      []FixtureEvent   `json:"events"`
	Expected    []FixtureOutcome `json:"expected"`
}

// FixtureEvent is one capture record, or a manual request, at an offset from
// the start of the replay.
type FixtureEvent struct {
	AtMs   int64           `json:"at_ms"`
	Record *capture.Record `json:"record,omitempty"`
	Manual bool            `json:"manual,omitempty"`
}

// FixtureOutcome is the expected decision for the n-th analysis, in order.
type FixtureOutcome struct {
	Decision string `json:"decision"`
	Level    int    `json:"level"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks that events are ordered and well formed.
func (f *Fixture) Validate() error {
	var last int64
	for i, ev := range f.Events {
		if ev.AtMs < last {
			return fmt.Errorf("event %d at %dms is before the previous event", i, ev.AtMs)
		}
		if (ev.Record == nil) == !ev.Manual {
			return fmt.Errorf("event %d must carry exactly one of record or manual", i)
		}
		last = ev.AtMs
	}
	if f.RunUntilMs < last {
		return fmt.Errorf("run_until_ms %d ends before the last event", f.RunUntilMs)
	}
	return nil
}

// ToTuning parses the fixture's tuning overrides over the defaults.
func (f *Fixture) ToTuning() (config.Tuning, error) {
	if f.Tuning == "" {
		return config.DefaultTuning(), nil
	}
	return config.ParseTuning([]byte(f.Tuning))
}

// Duration returns the replay length.
func (f *Fixture) Duration() time.Duration {
	return time.Duration(f.RunUntilMs) * time.Millisecond
}

// #endregion fixture-loader
