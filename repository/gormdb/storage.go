// Package gormdb stores users and tasks through gorm, on SQLite or MySQL.
package gormdb

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Storage struct {
	db *gorm.DB
}

// zerologWriter lets gorm's logger write through the global zerolog logger.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...any) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// NewStorage opens the database for driver and migrates the schema.
func NewStorage(driver, dsn string) (*Storage, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	dbLogger := logger.New(zerologWriter{}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Error().Err(err).Str("driver", driver).Msg("[ERROR] failed to open database")
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&userRecord{}, &taskRecord{}, &subtaskRecord{}, &verificationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	log.Info().Str("driver", driver).Msg("[SUCCESS] database connection established")
	return &Storage{db: db}, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "todo.db"
		}
		if err := ensureDirForSQLite(dsn); err != nil {
			return nil, err
		}
		dsn = withParam(dsn, "_foreign_keys", "on")
		dsn = withParam(dsn, "_busy_timeout", "5000")
		return sqlite.Open(dsn), nil
	case DriverMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("mysql: empty dsn")
		}
		dsn = withParam(dsn, "parseTime", "true")
		// Report matched rows so an update that changes nothing is not a miss.
		dsn = withParam(dsn, "clientFoundRows", "true")
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func withParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}

// ensureDirForSQLite creates the parent directory of a file-backed database.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	rec := newUserRecord(user)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrUserAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *Storage) getUser(ctx context.Context, cond, arg string) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where(cond, arg).First(&rec).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return rec.model(), nil
}

func (s *Storage) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res := s.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Update("password", passwordHash)
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user and everything they own in one transaction.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Unscoped().Model(&taskRecord{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&subtaskRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&taskRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&verificationRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&userRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.ErrUserNotFound
		}
		return nil
	})
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	rec := newTaskRecord(task)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		if err := tx.Model(&userRecord{}).Where("id = ?", task.OwnerID).Count(&owners).Error; err != nil {
			return err
		}
		if owners == 0 {
			return errors.ErrUserNotFound
		}
		if err := tx.Create(&rec).Error; err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.ErrConflict
			}
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
}

func (s *Storage) GetTask(ctx context.Context, ownerID, id string) (*models.Task, error) {
	var rec taskRecord
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&rec).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	task := rec.model()
	return &task, nil
}

func (s *Storage) ListTasks(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", string(filter.Priority))
	}
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}

	var recs []taskRecord
	if err := q.Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]models.Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, rec.model())
	}
	return tasks, nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	res := s.db.WithContext(ctx).Model(&taskRecord{}).
		Where("id = ? AND user_id = ?", task.ID, task.OwnerID).
		Updates(map[string]any{
			"title":        task.Title,
			"description":  task.Description,
			"completed":    task.Completed,
			"priority":     string(task.Priority),
			"category":     string(task.Category),
			"due_at":       task.DueAt,
			"completed_at": task.CompletedAt,
			"updated_at":   task.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// DeleteTask soft-deletes; the row stays until PurgeDeletedTasks.
func (s *Storage) DeleteTask(ctx context.Context, ownerID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&taskRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Storage) PurgeDeletedTasks(ctx context.Context) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Unscoped().Model(&taskRecord{}).Where("deleted_at IS NOT NULL").Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("task_id IN ?", ids).Delete(&subtaskRecord{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id IN ?", ids).Delete(&taskRecord{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	return removed, nil
}

func (s *Storage) CreateSubtask(ctx context.Context, subtask *models.Subtask) error {
	if subtask.ID == "" {
		subtask.ID = uuid.New().String()
	}
	rec := newSubtaskRecord(subtask)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parents int64
		if err := tx.Model(&taskRecord{}).Where("id = ?", subtask.TaskID).Count(&parents).Error; err != nil {
			return err
		}
		if parents == 0 {
			return errors.ErrNotFound
		}
		if err := tx.Create(&rec).Error; err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.ErrConflict
			}
			return fmt.Errorf("create subtask: %w", err)
		}
		return nil
	})
}

func (s *Storage) GetSubtask(ctx context.Context, ownerID, id string) (*models.Subtask, error) {
	var rec subtaskRecord
	err := s.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = subtasks.task_id AND tasks.deleted_at IS NULL").
		Where("subtasks.id = ? AND tasks.user_id = ?", id, ownerID).
		First(&rec).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	sub := rec.model()
	return &sub, nil
}

func (s *Storage) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	var recs []subtaskRecord
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("position, created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	subtasks := make([]models.Subtask, 0, len(recs))
	for _, rec := range recs {
		subtasks = append(subtasks, rec.model())
	}
	return subtasks, nil
}

func (s *Storage) UpdateSubtask(ctx context.Context, subtask *models.Subtask) error {
	res := s.db.WithContext(ctx).Model(&subtaskRecord{}).
		Where("id = ? AND task_id = ?", subtask.ID, subtask.TaskID).
		Updates(map[string]any{"title": subtask.Title, "completed": subtask.Completed, "position": subtask.Order})
	if res.Error != nil {
		return fmt.Errorf("update subtask: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteSubtask(ctx context.Context, ownerID, id string) error {
	sub, err := s.GetSubtask(ctx, ownerID, id)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ?", sub.ID).Delete(&subtaskRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete subtask: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Storage) CreateVerification(ctx context.Context, v *models.EmailVerification) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	rec := newVerificationRecord(v)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrConflict
		}
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

func (s *Storage) GetVerificationByUser(ctx context.Context, userID string) (*models.EmailVerification, error) {
	return s.getVerification(ctx, "user_id = ?", userID)
}

func (s *Storage) GetVerificationByToken(ctx context.Context, token string) (*models.EmailVerification, error) {
	return s.getVerification(ctx, "token = ?", token)
}

func (s *Storage) getVerification(ctx context.Context, cond, arg string) (*models.EmailVerification, error) {
	var rec verificationRecord
	if err := s.db.WithContext(ctx).Where(cond, arg).First(&rec).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	return rec.model(), nil
}

func (s *Storage) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&verificationRecord{}).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]any{"verified": true, "verified_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("mark verified: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&verificationRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, errors.ErrNotFound
	}
	return false, nil
}

func (s *Storage) ReissueVerification(ctx context.Context, v *models.EmailVerification) error {
	res := s.db.WithContext(ctx).Model(&verificationRecord{}).
		Where("id = ? AND user_id = ? AND verified = ?", v.ID, v.UserID, false).
		Updates(map[string]any{"token": v.Token, "created_at": v.CreatedAt})
	if res.Error != nil {
		if stderrors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return errors.ErrConflict
		}
		return fmt.Errorf("reissue verification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}
