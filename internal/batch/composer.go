package batch

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/id"
)

// #region config
// ComposerConfig holds the thresholds used while annotating a batch.
type ComposerConfig struct {
	DelayThreshold       time.Duration // gaps above this emit a delay marker
	RepetitionRatio      float64       // share of words one token must exceed
	RepetitionMinLen     int           // only words longer than this are candidates
	RecentURLWindow      int           // entries considered for context switching
	ContextSwitchURLs    int           // distinct URLs above this flag context switching
	RapidChangeMaxLen    int           // diffs shorter than this count as rapid edits
	RapidChangeCount     int           // rapid edits above this flag rapid changes
	ProlongedFocusSpan   time.Duration // timespan above this flags prolonged focus
	FrequentErrorEntries int           // error entries above this flag frequent errors
}

// DefaultComposerConfig returns the standard annotation thresholds.
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		DelayThreshold:       5 * time.Second,
		RepetitionRatio:      0.3,
		RepetitionMinLen:     3,
		RecentURLWindow:      10,
		ContextSwitchURLs:    3,
		RapidChangeMaxLen:    50,
		RapidChangeCount:     5,
		ProlongedFocusSpan:   60 * time.Second,
		FrequentErrorEntries: 2,
	}
}

// #endregion config

// #region composer
// Composer turns a selection of capture entries into an annotated Batch.
type Composer struct {
	config ComposerConfig
}

// NewComposer creates a composer with the given thresholds.
func NewComposer(config ComposerConfig) *Composer {
	return &Composer{config: config}
}

// Compose builds a batch sealed at sealedAt. An empty selection yields no batch.
func (c *Composer) Compose(entries []capture.Entry, sealedAt time.Time) (Batch, bool) {
	if len(entries) == 0 {
		return Batch{}, false
	}

	sorted := make([]capture.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})

	segments := make([]Segment, 0, len(sorted)+4)
	for i, e := range sorted {
		if i > 0 {
			gap := e.CapturedAt.Sub(sorted[i-1].CapturedAt)
			if gap > c.config.DelayThreshold {
				segments = append(segments, Segment{
					Kind:  KindDelay,
					Delay: time.Duration(math.Round(gap.Seconds())) * time.Second,
				})
			}
		}
		if seg, ok := c.tagChange(e); ok {
			segments = append(segments, seg)
		}
	}

	last := sorted[len(sorted)-1]
	segments = append(segments, Segment{Kind: KindContext, URL: SanitizeURL(last.URL)})

	timespan := last.CapturedAt.Sub(sorted[0].CapturedAt)
	segments = append(segments, c.behaviors(sorted, timespan)...)

	b := Batch{
		ID:            id.At(sealedAt).String(),
		Timestamp:     sealedAt,
		Segments:      segments,
		RawEntryCount: len(sorted),
		Timespan:      timespan,
	}
	b.StructuredText = Render(b)
	return b, true
}

// SetConfig replaces the thresholds used for subsequent batches.
func (c *Composer) SetConfig(config ComposerConfig) {
	c.config = config
}

// #endregion composer

// #region tagging
// tagChange applies content tags in fixed order. Detection runs on the raw
// diff so markup introduced by earlier tags never triggers later ones.
func (c *Composer) tagChange(e capture.Entry) (Segment, bool) {
	raw := e.Diff
	if strings.TrimSpace(raw) == "" {
		return Segment{}, false
	}

	seg := Segment{
		Kind:      KindChange,
		Timestamp: e.CapturedAt,
		Text:      raw,
		Markup:    normalizeMarkers(raw),
	}

	if c.isRepetitive(raw) {
		seg.Tags = append(seg.Tags, TagRepetitive)
	}
	if ErrorPattern.MatchString(raw) {
		seg.Tags = append(seg.Tags, TagError)
	}
	if ConfusionPattern.MatchString(raw) {
		seg.Tags = append(seg.Tags, TagConfusion)
	}
	if SearchPattern.MatchString(raw) {
		seg.Tags = append(seg.Tags, TagSearch)
	}
	if IsMath(raw) {
		seg.Tags = append(seg.Tags, TagMath)
	}
	if IncorrectAnswerPattern.MatchString(raw) {
		seg.Tags = append(seg.Tags, TagIncorrect)
	}
	return seg, true
}

// isRepetitive reports whether a single long token makes up more than
// RepetitionRatio of all words. A token must appear at least twice.
func (c *Composer) isRepetitive(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(words) == 0 {
		return false
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		if len([]rune(w)) > c.config.RepetitionMinLen {
			counts[w]++
		}
	}
	for _, n := range counts {
		if n >= 2 && float64(n)/float64(len(words)) > c.config.RepetitionRatio {
			return true
		}
	}
	return false
}

// #endregion tagging

// #region behaviors
func (c *Composer) behaviors(entries []capture.Entry, timespan time.Duration) []Segment {
	var out []Segment

	recent := entries
	if len(recent) > c.config.RecentURLWindow {
		recent = recent[len(recent)-c.config.RecentURLWindow:]
	}
	urls := make(map[string]struct{})
	for _, e := range recent {
		if e.URL != "" {
			urls[SanitizeURL(e.URL)] = struct{}{}
		}
	}
	if len(urls) > c.config.ContextSwitchURLs {
		out = append(out, Segment{Kind: KindBehavior, Behavior: BehaviorContextSwitching, Count: len(urls)})
	}

	rapid := 0
	errs := 0
	for _, e := range entries {
		if strings.TrimSpace(e.Diff) == "" {
			continue
		}
		if len([]rune(e.Diff)) < c.config.RapidChangeMaxLen {
			rapid++
		}
		if ErrorPattern.MatchString(e.Diff) {
			errs++
		}
	}
	if rapid > c.config.RapidChangeCount {
		out = append(out, Segment{Kind: KindBehavior, Behavior: BehaviorRapidChanges, Count: rapid})
	}
	if timespan > c.config.ProlongedFocusSpan {
		out = append(out, Segment{
			Kind:     KindBehavior,
			Behavior: BehaviorProlongedFocus,
			Duration: time.Duration(math.Round(timespan.Seconds())) * time.Second,
		})
	}
	if errs > c.config.FrequentErrorEntries {
		out = append(out, Segment{Kind: KindBehavior, Behavior: BehaviorFrequentErrors, Count: errs})
	}
	return out
}

// #endregion behaviors

// #region sanitize
// SanitizeURL reduces a URL to host and path, dropping scheme, credentials,
// query and fragment.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			raw = raw[:i]
		}
		return raw
	}
	return u.Hostname() + u.Path
}

// #endregion sanitize
