package replay

import (
	"context"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/dispatch"
)

// discardNotifier drops events; replay reads nudges from the step reports.
type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, dispatch.Event) error { return nil }
