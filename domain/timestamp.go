package domain

import (
	"strings"
	"time"
)

const (
	canonicalNaive = "2006-01-02T15:04:05.999999"
	canonicalZoned = "2006-01-02T15:04:05.999999-07:00"
)

var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp is a parsed ISO-8601 value. Zoned is false for inputs that carried
// no offset; those are read as UTC.
type Timestamp struct {
	Time  time.Time
	Zoned bool
}

// ParseTimestamp parses the ISO-8601 forms found in the lists document.
// Fractional seconds are accepted by every layout.
func ParseTimestamp(raw string) (Timestamp, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Timestamp{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, Zoned: true}, true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, Zoned: false}, true
		}
	}
	return Timestamp{}, false
}

// String renders the canonical form: microsecond precision, offset only when
// the source had one.
func (t Timestamp) String() string {
	if t.Zoned {
		return t.Time.Format(canonicalZoned)
	}
	return t.Time.Format(canonicalNaive)
}

// CanonicalTimestamp normalises raw to its canonical form. Canonicalising an
// already canonical value returns it unchanged.
func CanonicalTimestamp(raw string) (string, bool) {
	ts, ok := ParseTimestamp(raw)
	if !ok {
		return "", false
	}
	return ts.String(), true
}

// FormatTimestamp renders t in canonical zoned form.
func FormatTimestamp(t time.Time) string {
	return Timestamp{Time: t, Zoned: true}.String()
}

// DeadlineTime returns the parsed deadline of t. Missing or unparsable
// deadlines report false.
func (t Task) DeadlineTime() (time.Time, bool) {
	if t.Deadline == nil {
		return time.Time{}, false
	}
	ts, ok := ParseTimestamp(*t.Deadline)
	if !ok {
		return time.Time{}, false
	}
	return ts.Time, true
}
