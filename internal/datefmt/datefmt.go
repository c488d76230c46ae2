// Package datefmt formats dates and times using Joda-style pattern strings,
// matching the page-naming formats used by outline graph hosts.
package datefmt

import (
	"regexp"
	"time"

	"github.com/vjeantet/jodaTime"
)

var weekdayRunRe = regexp.MustCompile(`E+`)

// FixWeekdayPattern forces any run of one to three weekday pattern
// characters to exactly three. Short runs render inconsistently in some
// host formatters, so "E" and "EE" are normalised to "EEE". Runs of four
// or more (full weekday names) are left untouched.
func FixWeekdayPattern(pattern string) string {
	return weekdayRunRe.ReplaceAllStringFunc(pattern, func(run string) string {
		if len(run) <= 3 {
			return "EEE"
		}
		return run
	})
}

// Format renders t using a Joda-style pattern string.
func Format(pattern string, t time.Time) string {
	return jodaTime.Format(pattern, t)
}

// PageLabel renders the date-page label for t, applying the weekday
// pattern fix to the host's preferred format first.
func PageLabel(preferredFormat string, t time.Time) string {
	return Format(FixWeekdayPattern(preferredFormat), t)
}

// PastDayLabels returns the page labels for the n days preceding today,
// most recent first (offsets 1..n days back from now).
func PastDayLabels(preferredFormat string, now time.Time, n int) []string {
	pattern := FixWeekdayPattern(preferredFormat)
	labels := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		labels = append(labels, Format(pattern, now.AddDate(0, 0, -i)))
	}
	return labels
}
