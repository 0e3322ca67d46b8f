// Package timefmt formats recording durations for display.
package timefmt

import (
	"fmt"
	"time"
)

// Split breaks d into whole minutes, seconds within the minute and tenths
// of a second. Negative durations are treated as zero.
func Split(d time.Duration) (minutes, seconds, tenths int) {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return int(ms / 60000), int(ms % 60000 / 1000), int(ms % 1000 / 100)
}

// Format renders d as MM:SS.t. Minutes grow past two digits when needed.
func Format(d time.Duration) string {
	m, s, t := Split(d)
	return fmt.Sprintf("%02d:%02d.%d", m, s, t)
}
