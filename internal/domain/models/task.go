package models

import (
	"sort"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"

	DefaultPriority = PriorityMedium
)

// Priorities lists every priority in ascending urgency.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategorySchool   Category = "school"
	CategoryShopping Category = "shopping"
	CategoryTravel   Category = "travel"
	CategoryHealth   Category = "health"
	CategoryFinance  Category = "finance"
	CategoryOther    Category = "other"

	DefaultCategory = CategoryOther
)

var Categories = []Category{
	CategoryPersonal,
	CategoryWork,
	CategorySchool,
	CategoryShopping,
	CategoryTravel,
	CategoryHealth,
	CategoryFinance,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// DueStatus classifies how urgent a task is relative to its due date.
type DueStatus string

const (
	DueStatusNoDeadline DueStatus = "no_deadline"
	DueStatusCompleted  DueStatus = "completed"
	DueStatusOverdue    DueStatus = "overdue"
	DueStatusToday      DueStatus = "due_today"
	DueStatusTomorrow   DueStatus = "due_tomorrow"
	DueStatusThisWeek   DueStatus = "due_this_week"
	DueStatusUpcoming   DueStatus = "upcoming"
)

const (
	day                = 24 * time.Hour
	dueThisWeekMaxDays = 7
)

type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	Category    Category   `json:"category"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsOverdue is true when the task has a due date strictly before now and is not completed.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueAt == nil || t.Completed {
		return false
	}
	return t.DueAt.Before(now)
}

// DueStatus evaluates the buckets in fixed order; the day buckets use whole days
// between now and the due date, not calendar dates.
func (t Task) DueStatus(now time.Time) DueStatus {
	switch {
	case t.DueAt == nil:
		return DueStatusNoDeadline
	case t.Completed:
		return DueStatusCompleted
	case t.IsOverdue(now):
		return DueStatusOverdue
	}

	days := int(t.DueAt.Sub(now) / day)
	switch {
	case days == 0:
		return DueStatusToday
	case days == 1:
		return DueStatusTomorrow
	case days <= dueThisWeekMaxDays:
		return DueStatusThisWeek
	default:
		return DueStatusUpcoming
	}
}

// SetCompleted changes the completion flag and keeps CompletedAt in step with it.
func (t *Task) SetCompleted(done bool, now time.Time) {
	if done == t.Completed {
		return
	}
	t.Completed = done
	if done {
		at := now
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
}

// CompletionTime reports when the task was completed. Rows stored before
// CompletedAt existed fall back to the last update time.
func (t Task) CompletionTime() (time.Time, bool) {
	if !t.Completed {
		return time.Time{}, false
	}
	if t.CompletedAt != nil {
		return *t.CompletedAt, true
	}
	return t.UpdatedAt, true
}

type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// SortSubtasks orders subtasks by Order, then by creation time.
func SortSubtasks(subtasks []Subtask) {
	sort.SliceStable(subtasks, func(i, j int) bool {
		if subtasks[i].Order != subtasks[j].Order {
			return subtasks[i].Order < subtasks[j].Order
		}
		return subtasks[i].CreatedAt.Before(subtasks[j].CreatedAt)
	})
}

// SortTasks orders tasks newest first.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

// TaskView is a task as returned to clients, with derived fields computed at read time.
type TaskView struct {
	Task
	IsOverdue bool      `json:"is_overdue"`
	DueStatus DueStatus `json:"due_status"`
	Subtasks  []Subtask `json:"subtasks,omitempty"`
}

func NewTaskView(t Task, now time.Time) TaskView {
	return TaskView{
		Task:      t,
		IsOverdue: t.IsOverdue(now),
		DueStatus: t.DueStatus(now),
	}
}

type TaskFilter struct {
	Completed *bool
	Priority  Priority
	Category  Category
}

func (f TaskFilter) Match(t Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return true
}

type TaskDraft struct {
	Title       string
	Description string
	Priority    Priority
	Category    Category
	DueAt       *time.Time
}

// TaskPatch is a partial update; nil slots are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Category    *Category
	DueAt       *time.Time
	ClearDueAt  bool
	Completed   *bool
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Category == nil &&
		p.DueAt == nil && !p.ClearDueAt && p.Completed == nil
}

// Apply writes the patch onto t. Values are expected to be validated already.
func (p TaskPatch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.ClearDueAt {
		t.DueAt = nil
	} else if p.DueAt != nil {
		due := *p.DueAt
		t.DueAt = &due
	}
	if p.Completed != nil {
		t.SetCompleted(*p.Completed, now)
	}
	t.UpdatedAt = now
}
