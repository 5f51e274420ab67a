package db

import (
	"context"
	stderrors "errors"
	"time"
	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const queryTimeout = 15 * time.Second

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

const taskColumns = `id, user_id, title, description, completed, priority, category, due_at, completed_at, created_at, updated_at`

// Storage is the PostgreSQL store. Task deletes only set the deleted flag;
// PurgeDeletedTasks removes flagged rows and their subtasks.
type Storage struct {
	pool *pgxpool.Pool

	prepCreateUser          string
	prepGetUserByID         string
	prepGetUserByUsername   string
	prepGetUserByEmail      string
	prepUpdateUserPassword  string
	prepDeleteUser          string
	prepCreateTask          string
	prepGetTask             string
	prepListTasks           string
	prepUpdateTask          string
	prepDeleteTask          string
	prepPurgeTasks          string
	prepCreateSubtask       string
	prepGetSubtask          string
	prepListSubtasks        string
	prepUpdateSubtask       string
	prepDeleteSubtask       string
	prepCreateVerification  string
	prepVerificationByUser  string
	prepVerificationByToken string
	prepMarkVerified        string
	prepVerificationExists  string
	prepReissue             string
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Error().Err(err).Msg("[ERROR] failed to configure database pool")
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("[ERROR] failed to connect to database")
		return nil, err
	}

	s := &Storage{
		pool:                   pool,
		prepCreateUser:         `INSERT INTO users (id, username, email, password, created_at) VALUES ($1, $2, $3, $4, $5)`,
		prepGetUserByID:        `SELECT id, username, email, password, created_at FROM users WHERE id = $1`,
		prepGetUserByUsername:  `SELECT id, username, email, password, created_at FROM users WHERE username = $1`,
		prepGetUserByEmail:     `SELECT id, username, email, password, created_at FROM users WHERE email = $1`,
		prepUpdateUserPassword: `UPDATE users SET password = $2 WHERE id = $1`,
		prepDeleteUser:         `DELETE FROM users WHERE id = $1`,
		prepCreateTask: `INSERT INTO tasks (` + taskColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		prepGetTask: `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2 AND deleted = false`,
		prepListTasks: `SELECT ` + taskColumns + ` FROM tasks
			WHERE user_id = $1 AND deleted = false
			AND ($2::boolean IS NULL OR completed = $2)
			AND ($3 = '' OR priority = $3)
			AND ($4 = '' OR category = $4)
			ORDER BY created_at DESC`,
		prepUpdateTask: `UPDATE tasks SET title = $3, description = $4, completed = $5, priority = $6, category = $7,
			due_at = $8, completed_at = $9, updated_at = $10
			WHERE id = $1 AND user_id = $2 AND deleted = false`,
		prepDeleteTask:    `UPDATE tasks SET deleted = true WHERE id = $1 AND user_id = $2 AND deleted = false`,
		prepPurgeTasks:    `DELETE FROM tasks WHERE deleted = true`,
		prepCreateSubtask: `INSERT INTO subtasks (id, task_id, title, completed, position, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		prepGetSubtask: `SELECT s.id, s.task_id, s.title, s.completed, s.position, s.created_at
			FROM subtasks s JOIN tasks t ON t.id = s.task_id
			WHERE s.id = $1 AND t.user_id = $2 AND t.deleted = false`,
		prepListSubtasks: `SELECT id, task_id, title, completed, position, created_at FROM subtasks
			WHERE task_id = $1 ORDER BY position, created_at`,
		prepUpdateSubtask: `UPDATE subtasks SET title = $3, completed = $4, position = $5 WHERE id = $1 AND task_id = $2`,
		prepDeleteSubtask: `DELETE FROM subtasks s USING tasks t
			WHERE s.id = $1 AND t.id = s.task_id AND t.user_id = $2 AND t.deleted = false`,
		prepCreateVerification:  `INSERT INTO email_verifications (id, user_id, token, verified, created_at) VALUES ($1, $2, $3, $4, $5)`,
		prepVerificationByUser:  `SELECT id, user_id, token, verified, created_at, verified_at FROM email_verifications WHERE user_id = $1`,
		prepVerificationByToken: `SELECT id, user_id, token, verified, created_at, verified_at FROM email_verifications WHERE token = $1`,
		prepMarkVerified:        `UPDATE email_verifications SET verified = true, verified_at = $2 WHERE id = $1 AND verified = false`,
		prepVerificationExists:  `SELECT EXISTS (SELECT 1 FROM email_verifications WHERE id = $1)`,
		prepReissue:             `UPDATE email_verifications SET token = $3, created_at = $4 WHERE id = $1 AND user_id = $2 AND verified = false`,
	}
	log.Info().Msg("[SUCCESS] database connection established")
	return s, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, s.prepCreateUser, user.ID, user.Username, user.Email, user.Password, user.CreatedAt)
	if err != nil {
		log.Error().Err(err).Msg("[ERROR] failed to create user")
		if pgCode(err) == pgUniqueViolation {
			return errors.ErrUserAlreadyExists
		}
		return err
	}
	log.Debug().Str("user_id", user.ID).Msg("[SUCCESS] user created")
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, s.prepGetUserByID, id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, s.prepGetUserByUsername, username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, s.prepGetUserByEmail, email)
}

func (s *Storage) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &models.User{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt)
	if err != nil {
		if isMissing(err) {
			return nil, errors.ErrUserNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to load user")
		return nil, err
	}
	return user, nil
}

func (s *Storage) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepUpdateUserPassword, id, passwordHash)
	if err != nil {
		if isMissing(err) {
			return errors.ErrUserNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to update password")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	log.Debug().Str("user_id", id).Msg("[SUCCESS] password updated")
	return nil
}

// DeleteUser relies on ON DELETE CASCADE for tasks, subtasks and verifications.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepDeleteUser, id)
	if err != nil {
		if isMissing(err) {
			return errors.ErrUserNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to delete user")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	log.Info().Str("user_id", id).Msg("[SUCCESS] user deleted")
	return nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, s.prepCreateTask,
		task.ID, task.OwnerID, task.Title, task.Description, task.Completed,
		string(task.Priority), string(task.Category), task.DueAt, task.CompletedAt, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Msg("[ERROR] failed to create task")
		switch pgCode(err) {
		case pgForeignKeyViolation, pgInvalidText:
			return errors.ErrUserNotFound
		case pgUniqueViolation:
			return errors.ErrConflict
		}
		return err
	}
	log.Debug().Str("task_id", task.ID).Msg("[SUCCESS] task created")
	return nil
}

func (s *Storage) GetTask(ctx context.Context, ownerID, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	task, err := scanTask(s.pool.QueryRow(ctx, s.prepGetTask, id, ownerID))
	if err != nil {
		if isMissing(err) {
			return nil, errors.ErrNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to load task")
		return nil, err
	}
	return task, nil
}

func (s *Storage) ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, s.prepListTasks, ownerID, filter.Completed, string(filter.Priority), string(filter.Category))
	if err != nil {
		if isMissing(err) {
			return []models.Task{}, nil
		}
		log.Error().Err(err).Msg("[ERROR] failed to list tasks")
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error().Err(err).Msg("[ERROR] failed to read task row")
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		if isMissing(err) {
			return []models.Task{}, nil
		}
		return nil, err
	}
	return tasks, nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepUpdateTask,
		task.ID, task.OwnerID, task.Title, task.Description, task.Completed,
		string(task.Priority), string(task.Category), task.DueAt, task.CompletedAt, task.UpdatedAt)
	if err != nil {
		if isMissing(err) {
			return errors.ErrNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to update task")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	log.Debug().Str("task_id", task.ID).Msg("[SUCCESS] task updated")
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, ownerID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepDeleteTask, id, ownerID)
	if err != nil {
		if isMissing(err) {
			return errors.ErrNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to delete task")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	log.Debug().Str("task_id", id).Msg("[SUCCESS] task flagged as deleted")
	return nil
}

// PurgeDeletedTasks hard-deletes flagged tasks in one transaction; subtasks go
// with them through the foreign key.
func (s *Storage) PurgeDeletedTasks(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	ct, err := tx.Exec(ctx, s.prepPurgeTasks)
	if err != nil {
		_ = tx.Rollback(ctx)
		log.Error().Err(err).Msg("[ERROR] failed to purge deleted tasks")
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *Storage) CreateSubtask(ctx context.Context, subtask *models.Subtask) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if subtask.ID == "" {
		subtask.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, s.prepCreateSubtask,
		subtask.ID, subtask.TaskID, subtask.Title, subtask.Completed, subtask.Order, subtask.CreatedAt)
	if err != nil {
		log.Error().Err(err).Msg("[ERROR] failed to create subtask")
		switch pgCode(err) {
		case pgForeignKeyViolation, pgInvalidText:
			return errors.ErrNotFound
		case pgUniqueViolation:
			return errors.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Storage) GetSubtask(ctx context.Context, ownerID, id string) (*models.Subtask, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sub := &models.Subtask{}
	err := s.pool.QueryRow(ctx, s.prepGetSubtask, id, ownerID).
		Scan(&sub.ID, &sub.TaskID, &sub.Title, &sub.Completed, &sub.Order, &sub.CreatedAt)
	if err != nil {
		if isMissing(err) {
			return nil, errors.ErrNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to load subtask")
		return nil, err
	}
	return sub, nil
}

func (s *Storage) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, s.prepListSubtasks, taskID)
	if err != nil {
		log.Error().Err(err).Msg("[ERROR] failed to list subtasks")
		return nil, err
	}
	subtasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Subtask, error) {
		var sub models.Subtask
		err := row.Scan(&sub.ID, &sub.TaskID, &sub.Title, &sub.Completed, &sub.Order, &sub.CreatedAt)
		return sub, err
	})
	if err != nil {
		if isMissing(err) {
			return []models.Subtask{}, nil
		}
		return nil, err
	}
	return subtasks, nil
}

func (s *Storage) UpdateSubtask(ctx context.Context, subtask *models.Subtask) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepUpdateSubtask, subtask.ID, subtask.TaskID, subtask.Title, subtask.Completed, subtask.Order)
	if err != nil {
		if isMissing(err) {
			return errors.ErrNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to update subtask")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteSubtask(ctx context.Context, ownerID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepDeleteSubtask, id, ownerID)
	if err != nil {
		if isMissing(err) {
			return errors.ErrNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to delete subtask")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Storage) CreateVerification(ctx context.Context, v *models.EmailVerification) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, s.prepCreateVerification, v.ID, v.UserID, v.Token, v.Verified, v.CreatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return errors.ErrConflict
		case pgForeignKeyViolation:
			return errors.ErrUserNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to create verification")
		return err
	}
	log.Debug().Str("user_id", v.UserID).Msg("[SUCCESS] verification created")
	return nil
}

func (s *Storage) GetVerificationByUser(ctx context.Context, userID string) (*models.EmailVerification, error) {
	return s.getVerification(ctx, s.prepVerificationByUser, userID)
}

func (s *Storage) GetVerificationByToken(ctx context.Context, token string) (*models.EmailVerification, error) {
	return s.getVerification(ctx, s.prepVerificationByToken, token)
}

func (s *Storage) getVerification(ctx context.Context, query, arg string) (*models.EmailVerification, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	v := &models.EmailVerification{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(&v.ID, &v.UserID, &v.Token, &v.Verified, &v.CreatedAt, &v.VerifiedAt)
	if err != nil {
		if isMissing(err) {
			return nil, errors.ErrNotFound
		}
		log.Error().Err(err).Msg("[ERROR] failed to load verification")
		return nil, err
	}
	return v, nil
}

// MarkVerified only updates a row that is still pending, so concurrent callers
// cannot both observe the transition.
func (s *Storage) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepMarkVerified, id, at)
	if err != nil {
		log.Error().Err(err).Msg("[ERROR] failed to mark verification")
		return false, err
	}
	if ct.RowsAffected() == 1 {
		log.Info().Str("verification_id", id).Msg("[SUCCESS] email verified")
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, s.prepVerificationExists, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, errors.ErrNotFound
	}
	return false, nil
}

func (s *Storage) ReissueVerification(ctx context.Context, v *models.EmailVerification) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, s.prepReissue, v.ID, v.UserID, v.Token, v.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return errors.ErrConflict
		}
		log.Error().Err(err).Msg("[ERROR] failed to reissue verification")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := &models.Task{}
	var priority, category string
	err := row.Scan(&task.ID, &task.OwnerID, &task.Title, &task.Description, &task.Completed,
		&priority, &category, &task.DueAt, &task.CompletedAt, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.Priority = models.Priority(priority)
	task.Category = models.Category(category)
	return task, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isMissing covers both an empty result and an id that is not a valid UUID.
func isMissing(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidText
}
