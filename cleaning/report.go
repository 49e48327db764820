package cleaning

import (
	"fmt"
	"io"
	"strings"
)

// Counts is the before and after size of one entity kind.
type Counts struct {
	Original int `json:"original_count"`
	Cleaned  int `json:"cleaned_count"`
	Removed  int `json:"removed_count"`
}

func newCounts(original, cleaned int) Counts {
	return Counts{Original: original, Cleaned: cleaned, Removed: original - cleaned}
}

// Report summarises a cleaning run.
type Report struct {
	Timestamp  string `json:"timestamp"`
	BackupPath string `json:"backup_path,omitempty"`
	DryRun     bool   `json:"dry_run"`
	Lists      Counts `json:"lists_cleaned"`
	Users      Counts `json:"users_cleaned"`
	Tasks      Counts `json:"tasks_cleaned"`
}

// Removed reports whether the run dropped any record.
func (r Report) Removed() bool {
	return r.Lists.Removed > 0 || r.Users.Removed > 0 || r.Tasks.Removed > 0
}

// WriteText prints the report for a terminal.
func (r Report) WriteText(w io.Writer) error {
	rule := strings.Repeat("=", 50)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "DATA CLEANING REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Timestamp: %s\n", r.Timestamp)
	switch {
	case r.DryRun:
		fmt.Fprintln(&b, "Dry run: no backup taken, nothing written")
	default:
		fmt.Fprintf(&b, "Backup created: %s\n", r.BackupPath)
	}
	for _, section := range []struct {
		name   string
		counts Counts
	}{
		{"Lists", r.Lists},
		{"Users", r.Users},
		{"Tasks", r.Tasks},
	} {
		fmt.Fprintf(&b, "\n%s cleaned:\n", section.name)
		fmt.Fprintf(&b, "  Original: %d\n", section.counts.Original)
		fmt.Fprintf(&b, "  Cleaned: %d\n", section.counts.Cleaned)
		fmt.Fprintf(&b, "  Removed: %d\n", section.counts.Removed)
	}
	fmt.Fprintln(&b, rule)
	_, err := io.WriteString(w, b.String())
	return err
}
