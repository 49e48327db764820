package domain

import (
	"testing"
	"time"
)

func TestCanonicalTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "naive", in: "2024-12-30T00:00:00", want: "2024-12-30T00:00:00", ok: true},
		{name: "naive fraction", in: "2024-12-30T08:15:00.123456789", want: "2024-12-30T08:15:00.123456", ok: true},
		{name: "zulu", in: "2024-12-30T08:15:00Z", want: "2024-12-30T08:15:00+00:00", ok: true},
		{name: "offset", in: "2024-12-30T08:15:00+02:00", want: "2024-12-30T08:15:00+02:00", ok: true},
		{name: "space separator", in: "2024-12-30 08:15:00", want: "2024-12-30T08:15:00", ok: true},
		{name: "date only", in: "2024-12-30", want: "2024-12-30T00:00:00", ok: true},
		{name: "padded", in: "  2024-12-30T01:02:03  ", want: "2024-12-30T01:02:03", ok: true},
		{name: "garbage", in: "next tuesday", ok: false},
		{name: "empty", in: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalTimestamp(tt.in)
			if ok != tt.ok {
				t.Fatalf("CanonicalTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if got != tt.want {
				t.Fatalf("CanonicalTimestamp(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !ok {
				return
			}
			again, _ := CanonicalTimestamp(got)
			if again != got {
				t.Fatalf("canonical form is not a fixed point: %q -> %q", got, again)
			}
		})
	}
}

func TestParseTimestampNaiveIsUTC(t *testing.T) {
	naive, ok := ParseTimestamp("2024-12-30T10:00:00")
	if !ok {
		t.Fatalf("expected naive timestamp to parse")
	}
	zoned, ok := ParseTimestamp("2024-12-30T10:00:00Z")
	if !ok {
		t.Fatalf("expected zoned timestamp to parse")
	}
	if !naive.Time.Equal(zoned.Time) {
		t.Fatalf("naive %v should equal UTC %v", naive.Time, zoned.Time)
	}
	if naive.Zoned || !zoned.Zoned {
		t.Fatalf("unexpected zone flags: naive=%v zoned=%v", naive.Zoned, zoned.Zoned)
	}
}

func TestTaskDeadlineTime(t *testing.T) {
	bad := "soon"
	good := "2024-01-02T03:04:05Z"
	if _, ok := (Task{}).DeadlineTime(); ok {
		t.Fatalf("missing deadline should not parse")
	}
	if _, ok := (Task{Deadline: &bad}).DeadlineTime(); ok {
		t.Fatalf("unparsable deadline should not parse")
	}
	got, ok := (Task{Deadline: &good}).DeadlineTime()
	if !ok {
		t.Fatalf("expected deadline to parse")
	}
	if want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("deadline = %v, want %v", got, want)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "2025-03-04T05:06:07+00:00" {
		t.Fatalf("unexpected format: %s", got)
	}
}
