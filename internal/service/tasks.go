package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"todoapp/internal/clock"
	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxTitleLen = 200

// TaskService implements the owner-scoped task and subtask use cases.
type TaskService struct {
	tasks    TaskRepository
	subtasks SubtaskRepository
	clock    clock.Clock
	cache    StatsCache
}

func NewTaskService(tasks TaskRepository, subtasks SubtaskRepository, clk clock.Clock, cache StatsCache) *TaskService {
	if clk == nil {
		clk = clock.System{}
	}
	return &TaskService{tasks: tasks, subtasks: subtasks, clock: clk, cache: cache}
}

func (s *TaskService) CreateTask(ctx context.Context, ownerID string, draft models.TaskDraft) (*models.TaskView, error) {
	title, err := cleanTitle(draft.Title)
	if err != nil {
		return nil, err
	}
	priority := draft.Priority
	if priority == "" {
		priority = models.DefaultPriority
	}
	category := draft.Category
	if category == "" {
		category = models.DefaultCategory
	}
	if err := checkEnums(priority, category); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	task := models.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: draft.Description,
		Priority:    priority,
		Category:    category,
		DueAt:       draft.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateTask(ctx, &task); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)

	view := models.NewTaskView(task, now)
	return &view, nil
}

// GetTask returns the task with its subtasks in display order.
func (s *TaskService) GetTask(ctx context.Context, ownerID, id string) (*models.TaskView, error) {
	task, err := s.tasks.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	subtasks, err := s.subtasks.ListSubtasks(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	models.SortSubtasks(subtasks)

	view := models.NewTaskView(*task, s.clock.Now())
	view.Subtasks = subtasks
	return &view, nil
}

func (s *TaskService) ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.TaskView, error) {
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, errors.ErrInvalidPriority
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, errors.ErrInvalidCategory
	}

	tasks, err := s.tasks.ListTasks(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	models.SortTasks(tasks)

	now := s.clock.Now()
	views := make([]models.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, models.NewTaskView(t, now))
	}
	return views, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id string, patch models.TaskPatch) (*models.TaskView, error) {
	if patch.Title != nil {
		title, err := cleanTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, errors.ErrInvalidPriority
	}
	if patch.Category != nil && !patch.Category.Valid() {
		return nil, errors.ErrInvalidCategory
	}

	task, err := s.tasks.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		view := models.NewTaskView(*task, s.clock.Now())
		return &view, nil
	}

	now := s.clock.Now()
	patch.Apply(task, now)
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)

	view := models.NewTaskView(*task, now)
	return &view, nil
}

func (s *TaskService) ToggleTask(ctx context.Context, ownerID, id string) (*models.TaskView, error) {
	task, err := s.tasks.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	done := !task.Completed
	return s.UpdateTask(ctx, ownerID, id, models.TaskPatch{Completed: &done})
}

func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id string) error {
	if err := s.tasks.DeleteTask(ctx, ownerID, id); err != nil {
		return err
	}
	s.invalidate(ctx, ownerID)
	return nil
}

// AddSubtask appends a subtask to the task unless an explicit order is given.
func (s *TaskService) AddSubtask(ctx context.Context, ownerID, taskID, title string, order *int) (*models.Subtask, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}
	if order != nil && *order < 0 {
		return nil, errors.ErrValidationFailed
	}
	task, err := s.tasks.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	position := 0
	if order != nil {
		position = *order
	} else {
		existing, err := s.subtasks.ListSubtasks(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		position = len(existing)
	}

	subtask := models.Subtask{
		ID:        uuid.New().String(),
		TaskID:    task.ID,
		Title:     title,
		Order:     position,
		CreatedAt: s.clock.Now(),
	}
	if err := s.subtasks.CreateSubtask(ctx, &subtask); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return &subtask, nil
}

func (s *TaskService) ToggleSubtask(ctx context.Context, ownerID, id string) (*models.Subtask, error) {
	subtask, err := s.subtasks.GetSubtask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	subtask.Completed = !subtask.Completed
	if err := s.subtasks.UpdateSubtask(ctx, subtask); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return subtask, nil
}

func (s *TaskService) DeleteSubtask(ctx context.Context, ownerID, id string) error {
	if err := s.subtasks.DeleteSubtask(ctx, ownerID, id); err != nil {
		return err
	}
	s.invalidate(ctx, ownerID)
	return nil
}

func (s *TaskService) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("statistics cache invalidation failed")
	}
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return "", errors.ErrInvalidTitle
	}
	return title, nil
}

func checkEnums(p models.Priority, c models.Category) error {
	if !p.Valid() {
		return errors.ErrInvalidPriority
	}
	if !c.Valid() {
		return errors.ErrInvalidCategory
	}
	return nil
}
