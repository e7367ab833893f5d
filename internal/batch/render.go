package batch

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used in structured batch text.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// #region render
// Render serializes a batch into its structured text form.
func Render(b Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<batch timestamp=\"%s\" entries=\"%d\">\n", b.Timestamp.UTC().Format(TimeLayout), b.RawEntryCount)
	for _, seg := range b.Segments {
		sb.WriteString(RenderSegment(seg))
		sb.WriteByte('\n')
	}
	sb.WriteString("</batch>")
	return sb.String()
}

// RenderSegment serializes one segment.
func RenderSegment(seg Segment) string {
	switch seg.Kind {
	case KindDelay:
		return fmt.Sprintf("<delay time=\"%s\" />", seconds(seg.Delay))
	case KindContext:
		return fmt.Sprintf("<context url=\"%s\" />", escaper.Replace(seg.URL))
	case KindBehavior:
		var sb strings.Builder
		fmt.Fprintf(&sb, "<behavior type=\"%s\"", seg.Behavior)
		if seg.Count > 0 {
			fmt.Fprintf(&sb, " count=\"%d\"", seg.Count)
		}
		if seg.Duration > 0 {
			fmt.Fprintf(&sb, " duration=\"%s\"", seconds(seg.Duration))
		}
		sb.WriteString(" />")
		return sb.String()
	default:
		inner := seg.Markup
		for _, tag := range seg.Tags {
			inner = "<" + string(tag) + ">" + inner + "</" + string(tag) + ">"
		}
		return fmt.Sprintf("<change timestamp=\"%s\">%s</change>", seg.Timestamp.UTC().Format(TimeLayout), inner)
	}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%ds", int64(d.Round(time.Second)/time.Second))
}

// #endregion render
