package storage

import (
	"context"
	"sync"
	"time"
	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
)

// Storage keeps everything in maps. Deletes are immediate, so there is never
// anything to purge.
type Storage struct {
	mu            sync.RWMutex
	users         map[string]models.User
	tasks         map[string]models.Task
	subtasks      map[string]models.Subtask
	verifications map[string]models.EmailVerification
}

func NewStorage() *Storage {
	return &Storage{
		users:         make(map[string]models.User),
		tasks:         make(map[string]models.Task),
		subtasks:      make(map[string]models.Subtask),
		verifications: make(map[string]models.EmailVerification),
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return errors.ErrUserAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return errors.ErrUserNotFound
	}
	user.Password = passwordHash
	s.users[id] = user
	return nil
}

func (s *Storage) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return errors.ErrUserNotFound
	}
	for taskID, task := range s.tasks {
		if task.OwnerID == id {
			s.deleteTaskLocked(taskID)
		}
	}
	for vID, v := range s.verifications {
		if v.UserID == id {
			delete(s.verifications, vID)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[task.OwnerID]; !exists {
		return errors.ErrUserNotFound
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	s.tasks[task.ID] = copyTask(*task)
	return nil
}

func (s *Storage) GetTask(_ context.Context, ownerID, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists || task.OwnerID != ownerID {
		return nil, errors.ErrNotFound
	}
	task = copyTask(task)
	return &task, nil
}

func (s *Storage) ListTasks(_ context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]models.Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID == ownerID && filter.Match(t) {
			tasks = append(tasks, copyTask(t))
		}
	}
	models.SortTasks(tasks)
	return tasks, nil
}

func (s *Storage) UpdateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tasks[task.ID]
	if !exists || existing.OwnerID != task.OwnerID {
		return errors.ErrNotFound
	}
	s.tasks[task.ID] = copyTask(*task)
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists || task.OwnerID != ownerID {
		return errors.ErrNotFound
	}
	s.deleteTaskLocked(id)
	return nil
}

func (s *Storage) PurgeDeletedTasks(context.Context) (int64, error) {
	return 0, nil
}

func (s *Storage) deleteTaskLocked(id string) {
	for subID, sub := range s.subtasks {
		if sub.TaskID == id {
			delete(s.subtasks, subID)
		}
	}
	delete(s.tasks, id)
}

func (s *Storage) CreateSubtask(_ context.Context, subtask *models.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[subtask.TaskID]; !exists {
		return errors.ErrNotFound
	}
	if subtask.ID == "" {
		subtask.ID = uuid.New().String()
	}
	s.subtasks[subtask.ID] = *subtask
	return nil
}

func (s *Storage) GetSubtask(_ context.Context, ownerID, id string) (*models.Subtask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subtasks[id]
	if !exists || s.tasks[sub.TaskID].OwnerID != ownerID {
		return nil, errors.ErrNotFound
	}
	return &sub, nil
}

func (s *Storage) ListSubtasks(_ context.Context, taskID string) ([]models.Subtask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subtasks := make([]models.Subtask, 0)
	for _, sub := range s.subtasks {
		if sub.TaskID == taskID {
			subtasks = append(subtasks, sub)
		}
	}
	models.SortSubtasks(subtasks)
	return subtasks, nil
}

func (s *Storage) UpdateSubtask(_ context.Context, subtask *models.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.subtasks[subtask.ID]
	if !exists || existing.TaskID != subtask.TaskID {
		return errors.ErrNotFound
	}
	s.subtasks[subtask.ID] = *subtask
	return nil
}

func (s *Storage) DeleteSubtask(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subtasks[id]
	if !exists || s.tasks[sub.TaskID].OwnerID != ownerID {
		return errors.ErrNotFound
	}
	delete(s.subtasks, id)
	return nil
}

func (s *Storage) CreateVerification(_ context.Context, v *models.EmailVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.verifications {
		if existing.UserID == v.UserID || existing.Token == v.Token {
			return errors.ErrConflict
		}
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	s.verifications[v.ID] = *v
	return nil
}

func (s *Storage) GetVerificationByUser(_ context.Context, userID string) (*models.EmailVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.verifications {
		if v.UserID == userID {
			return &v, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (s *Storage) GetVerificationByToken(_ context.Context, token string) (*models.EmailVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.verifications {
		if v.Token == token {
			return &v, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (s *Storage) MarkVerified(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.verifications[id]
	if !exists {
		return false, errors.ErrNotFound
	}
	if v.Verified {
		return false, nil
	}
	v.Verified = true
	v.VerifiedAt = &at
	s.verifications[id] = v
	return true, nil
}

func (s *Storage) ReissueVerification(_ context.Context, v *models.EmailVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.verifications[v.ID]
	if !exists || existing.UserID != v.UserID || existing.Verified {
		return errors.ErrNotFound
	}
	for id, other := range s.verifications {
		if id != v.ID && other.Token == v.Token {
			return errors.ErrConflict
		}
	}
	existing.Token = v.Token
	existing.CreatedAt = v.CreatedAt
	s.verifications[v.ID] = existing
	return nil
}

func copyTask(t models.Task) models.Task {
	if t.DueAt != nil {
		due := *t.DueAt
		t.DueAt = &due
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		t.CompletedAt = &done
	}
	return t
}
