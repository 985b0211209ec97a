package assistant

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order for explicit date strings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

var reInDuration = regexp.MustCompile(`^in (\d+) (minute|hour|day|week|month)s?$`)

// parseLooseDate interprets a date reference the way users type them:
// ISO-8601 forms, slash dates, month names, the literals today / tomorrow /
// yesterday / next week / next month, and "in N days" style offsets.
// Relative literals resolve against now. Returns false when nothing matches.
func parseLooseDate(input string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}

	switch strings.ToLower(s) {
	case "now":
		return now, true
	case "today":
		return now, true
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	case "yesterday":
		return now.AddDate(0, 0, -1), true
	case "next week":
		return now.AddDate(0, 0, 7), true
	case "next month":
		return now.AddDate(0, 1, 0), true
	}

	if m := reInDuration.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "minute":
			return now.Add(time.Duration(n) * time.Minute), true
		case "hour":
			return now.Add(time.Duration(n) * time.Hour), true
		case "day":
			return now.AddDate(0, 0, n), true
		case "week":
			return now.AddDate(0, 0, 7*n), true
		case "month":
			return now.AddDate(0, n, 0), true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseLooseDateOr parses a date reference, falling back to now+offset when
// the input is empty or unparseable. Used for optional fields with a defined
// default policy; explicit-required fields call parseLooseDate and reject.
func parseLooseDateOr(input string, now time.Time, offset time.Duration) time.Time {
	if t, ok := parseLooseDate(input, now); ok {
		return t
	}
	return now.Add(offset)
}
