// Package xtime extends time.Duration parsing and formatting with day, week,
// month and year units, used for durations in the configuration file and on
// the command line.
package xtime

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

// Units larger than an hour, in descending order.
var longUnits = []struct {
	symbols string
	dur     time.Duration
}{
	{"yY", year},
	{"M", month},
	{"Ww", week},
	{"Dd", day},
}

var componentRx = regexp.MustCompile(`(\d*\.\d+|\d+)([^\d.]*)`)

// ParseDuration parses a duration string. In addition to the units accepted by
// time.ParseDuration, it accepts "d" or "D" (days), "w" or "W" (weeks), "M"
// (30 day months), and "y" or "Y" (365 day years), e.g. "10d", "-1.5w" or
// "3Y4M5d".
func ParseDuration(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	comps := componentRx.FindAllStringSubmatch(s, -1)
	if len(comps) == 0 {
		return 0, fmt.Errorf("invalid duration '%s'", s)
	}

	var total time.Duration
	for _, comp := range comps {
		value, unit := comp[1], comp[2]

		scale := time.Duration(1)
		for _, lu := range longUnits {
			if unit != "" && strings.Contains(lu.symbols, unit) {
				// Parse the value as hours and scale it.
				unit, scale = "h", lu.dur/time.Hour
				break
			}
		}

		dur, err := time.ParseDuration(value + unit)
		if err != nil {
			return 0, err //nolint:wrapcheck // Already descriptive.
		}
		total += dur * scale
	}

	if neg {
		total = -total
	}

	return total, nil
}

// FormatDuration formats a duration into a string with friendly units, e.g.
// "10d", "-1w2d" or "3Y4M5d". It uses the same units as ParseDuration. The
// round parameter is the smallest unit included in the output.
func FormatDuration(d time.Duration, round time.Duration) string {
	if round > 0 {
		d = d.Round(round)
	}
	if d == 0 {
		return "0d"
	}

	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}

	for _, lu := range longUnits {
		if n := d / lu.dur; n > 0 {
			fmt.Fprintf(&sb, "%d%c", n, lu.symbols[len(lu.symbols)-1])
			d %= lu.dur
		}
	}

	for _, u := range []struct {
		suffix string
		dur    time.Duration
	}{
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
		{"ms", time.Millisecond},
		{"µs", time.Microsecond},
		{"ns", time.Nanosecond},
	} {
		if round > u.dur {
			break
		}
		if n := d / u.dur; n > 0 {
			fmt.Fprintf(&sb, "%d%s", n, u.suffix)
			d %= u.dur
		}
	}

	return sb.String()
}
