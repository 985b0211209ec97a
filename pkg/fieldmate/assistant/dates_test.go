package assistant

import (
	"testing"
	"time"
)

func TestParseLooseDateRelative(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		input string
		want  time.Time
	}{
		{"today", now},
		{"Tomorrow", now.AddDate(0, 0, 1)},
		{"yesterday", now.AddDate(0, 0, -1)},
		{"next week", now.AddDate(0, 0, 7)},
		{"next month", now.AddDate(0, 1, 0)},
		{"in 3 days", now.AddDate(0, 0, 3)},
		{"in 1 day", now.AddDate(0, 0, 1)},
		{"in 2 weeks", now.AddDate(0, 0, 14)},
		{"in 45 minutes", now.Add(45 * time.Minute)},
	}
	for _, c := range cases {
		got, ok := parseLooseDate(c.input, now)
		if !ok {
			t.Errorf("parseLooseDate(%q) did not parse", c.input)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("parseLooseDate(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestParseLooseDateExplicit(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for _, input := range []string{
		"2025-04-01",
		"2025-04-01T14:30:00Z",
		"04/01/2025",
		"Apr 1, 2025",
		"1 Apr 2025",
	} {
		got, ok := parseLooseDate(input, now)
		if !ok {
			t.Errorf("parseLooseDate(%q) did not parse", input)
			continue
		}
		if got.Month() != time.April || got.Day() != 1 || got.Year() != 2025 {
			t.Errorf("parseLooseDate(%q) = %v, want April 1 2025", input, got)
		}
	}
}

func TestParseLooseDateRejectsGarbage(t *testing.T) {
	now := time.Now()
	for _, input := range []string{"", "whenever", "soonish", "in some days"} {
		if _, ok := parseLooseDate(input, now); ok {
			t.Errorf("parseLooseDate(%q) parsed, want failure", input)
		}
	}
}

func TestParseLooseDateOrFallback(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	got := parseLooseDateOr("not a date", now, 7*24*time.Hour)
	if want := now.Add(7 * 24 * time.Hour); !got.Equal(want) {
		t.Errorf("fallback = %v, want %v", got, want)
	}
	got = parseLooseDateOr("tomorrow", now, 7*24*time.Hour)
	if want := now.AddDate(0, 0, 1); !got.Equal(want) {
		t.Errorf("parsed = %v, want %v", got, want)
	}
}
