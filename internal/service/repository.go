package service

import (
	"context"
	"time"

	"todoapp/internal/domain/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	// DeleteUser removes the user together with their tasks, subtasks and verification record.
	DeleteUser(ctx context.Context, id string) error
}

// TaskRepository reads and writes tasks scoped by owner. A task belonging to
// another owner is reported as errors.ErrNotFound.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, ownerID, id string) (*models.Task, error)
	ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, ownerID, id string) error
	// PurgeDeletedTasks hard-deletes soft-deleted tasks and returns how many were removed.
	PurgeDeletedTasks(ctx context.Context) (int64, error)
}

type SubtaskRepository interface {
	CreateSubtask(ctx context.Context, subtask *models.Subtask) error
	GetSubtask(ctx context.Context, ownerID, id string) (*models.Subtask, error)
	ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error)
	UpdateSubtask(ctx context.Context, subtask *models.Subtask) error
	DeleteSubtask(ctx context.Context, ownerID, id string) error
}

type VerificationRepository interface {
	// CreateVerification returns errors.ErrConflict when the user already has a
	// record or the token is taken.
	CreateVerification(ctx context.Context, v *models.EmailVerification) error
	GetVerificationByUser(ctx context.Context, userID string) (*models.EmailVerification, error)
	GetVerificationByToken(ctx context.Context, token string) (*models.EmailVerification, error)
	// MarkVerified flips a pending record to verified. It reports false when the
	// record was already verified, so only one caller observes the transition.
	MarkVerified(ctx context.Context, id string, at time.Time) (bool, error)
	// ReissueVerification replaces the token and creation time of the user's record.
	ReissueVerification(ctx context.Context, v *models.EmailVerification) error
}

type Store interface {
	UserRepository
	TaskRepository
	SubtaskRepository
	VerificationRepository
}
