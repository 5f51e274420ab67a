package gormdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 20, 8, 30, 0, 0, time.UTC)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(DriverSQLite, filepath.Join(t.TempDir(), "data", "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addUser(t *testing.T, s *Storage, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "hash", CreatedAt: now}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func addTask(t *testing.T, s *Storage, ownerID, title string, created time.Time) *models.Task {
	t.Helper()
	task := &models.Task{
		OwnerID:   ownerID,
		Title:     title,
		Priority:  models.DefaultPriority,
		Category:  models.DefaultCategory,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		dsn    string
		want   struct {
			error bool
		}
	}{
		{name: "sqlite", driver: DriverSQLite, dsn: filepath.Join(t.TempDir(), "x.db")},
		{name: "sqlite in memory", driver: DriverSQLite, dsn: "file::memory:?cache=shared"},
		{name: "mysql", driver: DriverMySQL, dsn: "user:pass@tcp(localhost:3306)/todo"},
		{
			name:   "mysql without dsn",
			driver: DriverMySQL,
			want: struct {
				error bool
			}{error: true},
		},
		{
			name:   "unknown driver",
			driver: "oracle",
			dsn:    "x",
			want: struct {
				error bool
			}{error: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialectorFor(tt.driver, tt.dsn)
			assert.Equal(t, tt.want.error, err != nil)
			if err == nil {
				assert.Equal(t, tt.driver, d.Name())
			}
		})
	}
}

func TestWithParam(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on", withParam("a.db", "_foreign_keys", "on"))
	assert.Equal(t, "a.db?mode=rwc&_foreign_keys=on", withParam("a.db?mode=rwc", "_foreign_keys", "on"))
	assert.Equal(t, "u@tcp(h)/db?parseTime=false", withParam("u@tcp(h)/db?parseTime=false", "parseTime", "true"))
}

func TestStorageUsers(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	user := addUser(t, s, "ann")

	tests := []struct {
		name string
		user *models.User
		want error
	}{
		{name: "duplicate username", user: &models.User{Username: "ann", Email: "x@example.com"}, want: errors.ErrUserAlreadyExists},
		{name: "duplicate email", user: &models.User{Username: "bob", Email: "ann@example.com"}, want: errors.ErrUserAlreadyExists},
		{name: "new user", user: &models.User{Username: "cid", Email: "cid@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(ctx, tt.user)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			assert.NoError(t, err)
		})
	}

	got, err := s.GetUserByUsername(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, now.Equal(got.CreatedAt))
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)

	require.NoError(t, s.UpdateUserPassword(ctx, user.ID, "new-hash"))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.Password)
	assert.ErrorIs(t, s.UpdateUserPassword(ctx, "missing", "x"), errors.ErrUserNotFound)
}

func TestStorageTasks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	ann := addUser(t, s, "ann")
	bob := addUser(t, s, "bob")

	older := addTask(t, s, ann.ID, "older", now)
	newer := addTask(t, s, ann.ID, "newer", now.Add(time.Hour))
	assert.ErrorIs(t, s.CreateTask(ctx, &models.Task{OwnerID: "ghost", Title: "x"}), errors.ErrUserNotFound)

	due := now.Add(72 * time.Hour)
	newer.Category = models.CategoryTravel
	newer.DueAt = &due
	newer.SetCompleted(true, now.Add(2*time.Hour))
	newer.UpdatedAt = now.Add(2 * time.Hour)
	require.NoError(t, s.UpdateTask(ctx, newer))

	got, err := s.GetTask(ctx, ann.ID, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTravel, got.Category)
	require.NotNil(t, got.DueAt)
	assert.True(t, due.Equal(*got.DueAt))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, now.Add(2*time.Hour).Equal(*got.CompletedAt))
	assert.True(t, now.Add(time.Hour).Equal(got.CreatedAt))
	assert.True(t, now.Add(2*time.Hour).Equal(got.UpdatedAt))

	newer.SetCompleted(false, now.Add(3*time.Hour))
	newer.DueAt = nil
	require.NoError(t, s.UpdateTask(ctx, newer))
	got, err = s.GetTask(ctx, ann.ID, newer.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.DueAt)

	_, err = s.GetTask(ctx, bob.ID, newer.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	foreign := *newer
	foreign.OwnerID = bob.ID
	assert.ErrorIs(t, s.UpdateTask(ctx, &foreign), errors.ErrNotFound)

	travel := models.TaskFilter{Category: models.CategoryTravel}
	tasks, err := s.ListTasks(ctx, ann.ID, travel)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, newer.ID, tasks[0].ID)

	tasks, err = s.ListTasks(ctx, ann.ID, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, newer.ID, tasks[0].ID)
	assert.Equal(t, older.ID, tasks[1].ID)
}

func TestStorageSoftDeleteAndPurge(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	ann := addUser(t, s, "ann")
	kept := addTask(t, s, ann.ID, "kept", now)
	gone := addTask(t, s, ann.ID, "gone", now)
	require.NoError(t, s.CreateSubtask(ctx, &models.Subtask{TaskID: gone.ID, Title: "step", CreatedAt: now}))
	sub := &models.Subtask{TaskID: gone.ID, Title: "other", CreatedAt: now}
	require.NoError(t, s.CreateSubtask(ctx, sub))

	require.NoError(t, s.DeleteTask(ctx, ann.ID, gone.ID))
	assert.ErrorIs(t, s.DeleteTask(ctx, ann.ID, gone.ID), errors.ErrNotFound)

	_, err := s.GetTask(ctx, ann.ID, gone.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = s.GetSubtask(ctx, ann.ID, sub.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, s.CreateSubtask(ctx, &models.Subtask{TaskID: gone.ID, Title: "late"}), errors.ErrNotFound)
	tasks, err := s.ListTasks(ctx, ann.ID, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, kept.ID, tasks[0].ID)

	removed, err := s.PurgeDeletedTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	subtasks, err := s.ListSubtasks(ctx, gone.ID)
	require.NoError(t, err)
	assert.Empty(t, subtasks)

	removed, err = s.PurgeDeletedTasks(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStorageSubtasks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	ann := addUser(t, s, "ann")
	bob := addUser(t, s, "bob")
	task := addTask(t, s, ann.ID, "trip", now)

	late := &models.Subtask{TaskID: task.ID, Title: "pack", Order: 1, CreatedAt: now}
	early := &models.Subtask{TaskID: task.ID, Title: "book", Order: 0, CreatedAt: now.Add(time.Minute)}
	require.NoError(t, s.CreateSubtask(ctx, late))
	require.NoError(t, s.CreateSubtask(ctx, early))

	list, err := s.ListSubtasks(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, early.ID, list[0].ID)
	assert.Equal(t, late.ID, list[1].ID)

	_, err = s.GetSubtask(ctx, bob.ID, early.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	early.Completed = true
	require.NoError(t, s.UpdateSubtask(ctx, early))
	got, err := s.GetSubtask(ctx, ann.ID, early.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	assert.ErrorIs(t, s.DeleteSubtask(ctx, bob.ID, early.ID), errors.ErrNotFound)
	require.NoError(t, s.DeleteSubtask(ctx, ann.ID, early.ID))
	assert.ErrorIs(t, s.DeleteSubtask(ctx, ann.ID, early.ID), errors.ErrNotFound)
}

func TestStorageVerifications(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	ann := addUser(t, s, "ann")
	bob := addUser(t, s, "bob")

	v := &models.EmailVerification{UserID: ann.ID, Token: uuid.New().String(), CreatedAt: now}
	require.NoError(t, s.CreateVerification(ctx, v))

	tests := []struct {
		name string
		v    *models.EmailVerification
	}{
		{name: "second record for user", v: &models.EmailVerification{UserID: ann.ID, Token: uuid.New().String(), CreatedAt: now}},
		{name: "token reused", v: &models.EmailVerification{UserID: bob.ID, Token: v.Token, CreatedAt: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.CreateVerification(ctx, tt.v), errors.ErrConflict)
		})
	}

	rotated := *v
	rotated.Token = uuid.New().String()
	rotated.CreatedAt = now.Add(30 * time.Hour)
	require.NoError(t, s.ReissueVerification(ctx, &rotated))
	_, err := s.GetVerificationByToken(ctx, v.Token)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	won, err := s.MarkVerified(ctx, v.ID, now.Add(31*time.Hour))
	require.NoError(t, err)
	assert.True(t, won)
	won, err = s.MarkVerified(ctx, v.ID, now.Add(32*time.Hour))
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.GetVerificationByUser(ctx, ann.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	require.NotNil(t, got.VerifiedAt)
	assert.True(t, now.Add(31*time.Hour).Equal(*got.VerifiedAt))
	assert.Equal(t, rotated.Token, got.Token)

	_, err = s.MarkVerified(ctx, "missing", now)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, s.ReissueVerification(ctx, &rotated), errors.ErrNotFound)
}

func TestStorageDeleteUserCascades(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	ann := addUser(t, s, "ann")
	bob := addUser(t, s, "bob")
	task := addTask(t, s, ann.ID, "mine", now)
	bobTask := addTask(t, s, bob.ID, "bob's", now)
	require.NoError(t, s.CreateSubtask(ctx, &models.Subtask{TaskID: task.ID, Title: "step", CreatedAt: now}))
	require.NoError(t, s.CreateVerification(ctx, &models.EmailVerification{UserID: ann.ID, Token: uuid.New().String(), CreatedAt: now}))

	require.NoError(t, s.DeleteUser(ctx, ann.ID))
	assert.ErrorIs(t, s.DeleteUser(ctx, ann.ID), errors.ErrUserNotFound)

	_, err := s.GetVerificationByUser(ctx, ann.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	subtasks, err := s.ListSubtasks(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, subtasks)
	_, err = s.GetTask(ctx, bob.ID, bobTask.ID)
	assert.NoError(t, err)

	var leftover int64
	require.NoError(t, s.db.Unscoped().Model(&taskRecord{}).Where("user_id = ?", ann.ID).Count(&leftover).Error)
	assert.Zero(t, leftover)
}
