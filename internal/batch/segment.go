package batch

import "time"

// #region kinds
// Kind distinguishes the segments of a structured batch.
type Kind string

const (
	KindChange   Kind = "change"
	KindDelay    Kind = "delay"
	KindContext  Kind = "context"
	KindBehavior Kind = "behavior"
)

// Tag is an inline content annotation wrapped around a change.
type Tag string

const (
	TagRepetitive Tag = "repetitive"
	TagError      Tag = "error_signal"
	TagConfusion  Tag = "confusion_signal"
	TagSearch     Tag = "search_activity"
	TagMath       Tag = "mathematical_content"
	TagIncorrect  Tag = "incorrect_answer_signal"
)

// BehaviorType names a batch-level behavioral marker.
type BehaviorType string

const (
	BehaviorContextSwitching BehaviorType = "context_switching"
	BehaviorRapidChanges     BehaviorType = "rapid_changes"
	BehaviorProlongedFocus   BehaviorType = "prolonged_focus"
	BehaviorFrequentErrors   BehaviorType = "frequent_errors"
)

// #endregion kinds

// #region segment
// Segment is one element of a batch's intermediate representation. Which
// fields are meaningful depends on Kind.
type Segment struct {
	Kind Kind

	// change
	Timestamp time.Time
	Text      string // raw diff text, used for keyword checks
	Markup    string // normalized inline markup, before tag wrapping
	Tags      []Tag  // application order, innermost first

	// delay
	Delay time.Duration

	// context
	URL string

	// behavior
	Behavior BehaviorType
	Count    int
	Duration time.Duration
}

// HasTag reports whether a change segment carries tag.
func (s Segment) HasTag(tag Tag) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// #endregion segment

// #region batch
// Batch is an immutable, sealed group of capture entries.
type Batch struct {
	ID             string
	Timestamp      time.Time
	Segments       []Segment
	RawEntryCount  int
	Timespan       time.Duration
	StructuredText string
}

// Changes returns only the change segments.
func (b Batch) Changes() []Segment {
	out := make([]Segment, 0, len(b.Segments))
	for _, s := range b.Segments {
		if s.Kind == KindChange {
			out = append(out, s)
		}
	}
	return out
}

// #endregion batch
