package batch

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var contentTags = map[string]Tag{
	string(TagRepetitive): TagRepetitive,
	string(TagError):      TagError,
	string(TagConfusion):  TagConfusion,
	string(TagSearch):     TagSearch,
	string(TagMath):       TagMath,
	string(TagIncorrect):  TagIncorrect,
}

// #region parse
// Parse reads structured batch text back into a Batch. Change text is
// rebuilt in capture marker form so keyword checks see what the composer saw.
// The batch ID is not part of the text and is left empty.
func Parse(text string) (Batch, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = false

	b := Batch{StructuredText: text}
	var (
		cur     *Segment
		raw     strings.Builder
		outerIn []Tag
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Batch{}, fmt.Errorf("parse batch: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "batch":
				b.Timestamp = parseTime(attr(t, "timestamp"))
				b.RawEntryCount, _ = strconv.Atoi(attr(t, "entries"))
			case "delay":
				d, _ := time.ParseDuration(attr(t, "time"))
				b.Segments = append(b.Segments, Segment{Kind: KindDelay, Delay: d})
			case "context":
				b.Segments = append(b.Segments, Segment{Kind: KindContext, URL: attr(t, "url")})
			case "behavior":
				seg := Segment{Kind: KindBehavior, Behavior: BehaviorType(attr(t, "type"))}
				seg.Count, _ = strconv.Atoi(attr(t, "count"))
				seg.Duration, _ = time.ParseDuration(attr(t, "duration"))
				b.Segments = append(b.Segments, seg)
			case "change":
				cur = &Segment{Kind: KindChange, Timestamp: parseTime(attr(t, "timestamp"))}
				raw.Reset()
				outerIn = outerIn[:0]
			case "deleted":
				if cur != nil {
					raw.WriteString("[DELETED: ")
				}
			case "changed":
				if cur != nil {
					raw.WriteString(`[CHANGED: "` + attr(t, "from") + `" → "` + attr(t, "to") + `"]`)
				}
			default:
				if tag, ok := contentTags[t.Name.Local]; ok && cur != nil {
					outerIn = append(outerIn, tag)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "deleted":
				if cur != nil {
					raw.WriteString("]")
				}
			case "change":
				if cur == nil {
					continue
				}
				cur.Text = raw.String()
				cur.Markup = normalizeMarkers(cur.Text)
				for i := len(outerIn) - 1; i >= 0; i-- {
					cur.Tags = append(cur.Tags, outerIn[i])
				}
				b.Segments = append(b.Segments, *cur)
				cur = nil
			}
		case xml.CharData:
			if cur != nil {
				raw.Write(t)
			}
		}
	}

	b.Timespan = timespanOf(b.Segments)
	return b, nil
}

// #endregion parse

// #region helpers
func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func timespanOf(segs []Segment) time.Duration {
	var first, last time.Time
	for _, s := range segs {
		if s.Kind != KindChange || s.Timestamp.IsZero() {
			continue
		}
		if first.IsZero() {
			first = s.Timestamp
		}
		last = s.Timestamp
	}
	return last.Sub(first)
}

// #endregion helpers
