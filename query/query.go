// Package query holds pure read-side functions over a lists document. None of
// them touch storage and all of them return copies.
package query

import (
	"sort"
	"time"

	"todo-api/domain"
)

// DueWithin returns every task whose deadline lies in [from, to], in document
// traversal order. Tasks without a parseable deadline are skipped.
func DueWithin(doc domain.Document, from, to time.Time) []domain.ListTask {
	out := []domain.ListTask{}
	for _, l := range doc.Lists {
		for _, t := range l.Tasks {
			deadline, ok := t.DeadlineTime()
			if !ok || deadline.Before(from) || deadline.After(to) {
				continue
			}
			out = append(out, domain.ListTask{Task: t.Clone(), ListID: l.ID, ListName: l.Name})
		}
	}
	return out
}

// DueThisWeek returns tasks whose deadline falls on a calendar day between
// today and seven days from today, both inclusive. Days are taken in now's
// location; a deadline written without an offset keeps its written date.
func DueThisWeek(doc domain.Document, now time.Time) []domain.ListTask {
	loc := now.Location()
	today := dayOf(now, loc)
	last := today.AddDate(0, 0, 7)

	out := []domain.ListTask{}
	for _, l := range doc.Lists {
		for _, t := range l.Tasks {
			if t.Deadline == nil {
				continue
			}
			deadline, ok := domain.ParseTimestamp(*t.Deadline)
			if !ok {
				continue
			}
			day := deadlineDay(deadline, loc)
			if day.Before(today) || day.After(last) {
				continue
			}
			out = append(out, domain.ListTask{Task: t.Clone(), ListID: l.ID, ListName: l.Name})
		}
	}
	return out
}

func deadlineDay(ts domain.Timestamp, loc *time.Location) time.Time {
	if !ts.Zoned {
		y, m, d := ts.Time.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return dayOf(ts.Time, loc)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// OrderedByDeadline sorts tasks by ascending deadline. Tasks with no deadline,
// or one that does not parse, follow in their original order. Ties keep their
// input order.
func OrderedByDeadline(tasks []domain.Task) []domain.Task {
	type keyed struct {
		task     domain.Task
		deadline time.Time
	}
	dated := make([]keyed, 0, len(tasks))
	undated := make([]domain.Task, 0)
	for _, t := range tasks {
		if deadline, ok := t.DeadlineTime(); ok {
			dated = append(dated, keyed{task: t.Clone(), deadline: deadline})
			continue
		}
		undated = append(undated, t.Clone())
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].deadline.Before(dated[j].deadline)
	})

	out := make([]domain.Task, 0, len(tasks))
	for _, k := range dated {
		out = append(out, k.task)
	}
	return append(out, undated...)
}

// ByCompletion keeps the tasks whose completed flag equals completed.
func ByCompletion(tasks []domain.Task, completed bool) []domain.Task {
	out := []domain.Task{}
	for _, t := range tasks {
		if t.Completed == completed {
			out = append(out, t.Clone())
		}
	}
	return out
}
