// Package stats folds a user's tasks into the numbers shown on the statistics page.
package stats

import (
	"math"
	"time"

	"todoapp/internal/domain/models"
)

// HistoryDays is the length of the trailing daily-completion histogram.
const HistoryDays = 7

const dateLayout = "2006-01-02"

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Statistics struct {
	Total          int                     `json:"total"`
	Completed      int                     `json:"completed"`
	Pending        int                     `json:"pending"`
	Overdue        int                     `json:"overdue"`
	CompletionRate float64                 `json:"completion_rate"`
	ByPriority     map[models.Priority]int `json:"by_priority"`
	ByCategory     map[models.Category]int `json:"by_category"`
	Daily          []DayCount              `json:"daily_completions"`
}

// Snapshot is the part of the statistics that depends only on stored rows.
// It can be kept between requests; At derives the clock-dependent numbers.
type Snapshot struct {
	Total       int                     `json:"total"`
	Completed   int                     `json:"completed"`
	ByPriority  map[models.Priority]int `json:"by_priority"`
	ByCategory  map[models.Category]int `json:"by_category"`
	OpenDueAt   []time.Time             `json:"open_due_at"`
	CompletedAt []time.Time             `json:"completed_at"`
}

// NewSnapshot records counts plus the due dates of open tasks and the
// completion instants of finished ones.
func NewSnapshot(tasks []models.Task) Snapshot {
	s := Snapshot{
		Total:      len(tasks),
		ByPriority: make(map[models.Priority]int, len(models.Priorities)),
		ByCategory: make(map[models.Category]int, len(models.Categories)),
	}
	for _, p := range models.Priorities {
		s.ByPriority[p] = 0
	}
	for _, c := range models.Categories {
		s.ByCategory[c] = 0
	}

	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		} else if t.DueAt != nil {
			s.OpenDueAt = append(s.OpenDueAt, t.DueAt.UTC())
		}
		if _, ok := s.ByPriority[t.Priority]; ok {
			s.ByPriority[t.Priority]++
		}
		if _, ok := s.ByCategory[t.Category]; ok {
			s.ByCategory[t.Category]++
		}
		if doneAt, ok := t.CompletionTime(); ok {
			s.CompletedAt = append(s.CompletedAt, doneAt.UTC())
		}
	}
	return s
}

// At evaluates the snapshot as of now. Every priority, category and day of the
// histogram is present even when its count is zero.
func (snap Snapshot) At(now time.Time) Statistics {
	s := Statistics{
		Total:          snap.Total,
		Completed:      snap.Completed,
		Pending:        snap.Total - snap.Completed,
		CompletionRate: CompletionRate(snap.Completed, snap.Total),
		ByPriority:     make(map[models.Priority]int, len(models.Priorities)),
		ByCategory:     make(map[models.Category]int, len(models.Categories)),
		Daily:          make([]DayCount, HistoryDays),
	}
	for _, p := range models.Priorities {
		s.ByPriority[p] = snap.ByPriority[p]
	}
	for _, c := range models.Categories {
		s.ByCategory[c] = snap.ByCategory[c]
	}

	// Same rule as Task.IsOverdue: open, due and strictly in the past.
	for _, due := range snap.OpenDueAt {
		if due.Before(now) {
			s.Overdue++
		}
	}

	today := now.UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(HistoryDays - 1))
	index := make(map[string]int, HistoryDays)
	for i := range s.Daily {
		date := first.AddDate(0, 0, i).Format(dateLayout)
		s.Daily[i] = DayCount{Date: date}
		index[date] = i
	}
	for _, doneAt := range snap.CompletedAt {
		if i, found := index[doneAt.Format(dateLayout)]; found {
			s.Daily[i].Count++
		}
	}
	return s
}

// Compute builds the statistics for tasks as of now.
func Compute(tasks []models.Task, now time.Time) Statistics {
	return NewSnapshot(tasks).At(now)
}

// CompletionRate is completed/total as a percentage rounded to one decimal, 0 for no tasks.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}
