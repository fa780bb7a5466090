package tail

import (
	"time"

	"github.com/soyeahso/vyrtuous/internal/config"
)

// Window is a local time-of-day range [Start, End) in whole hours. Equal
// bounds mean always active; Start > End wraps past midnight.
type Window struct {
	Start int
	End   int
}

// WindowFrom converts the configured active hours.
func WindowFrom(h config.ActiveHours) Window {
	return Window{Start: h.Start, End: h.End}
}

// Active reports whether t falls inside the window.
func (w Window) Active(t time.Time) bool {
	start, end := w.Start%24, w.End%24
	if start == end {
		return true
	}
	h := t.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
