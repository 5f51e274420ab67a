package gormdb

import (
	"time"

	"todoapp/internal/domain/models"

	"gorm.io/gorm"
)

type userRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Username  string    `gorm:"size:150;uniqueIndex;not null"`
	Email     string    `gorm:"size:254;uniqueIndex;not null"`
	Password  string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (userRecord) TableName() string { return "users" }

type taskRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:36;index:idx_tasks_user_created,priority:1;not null"`
	Title       string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	Completed   bool   `gorm:"not null;default:false"`
	Priority    string `gorm:"size:10;not null;default:medium"`
	Category    string `gorm:"size:20;not null;default:other"`
	DueAt       *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time      `gorm:"autoCreateTime:false;index:idx_tasks_user_created,priority:2"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime:false"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (taskRecord) TableName() string { return "tasks" }

type subtaskRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	TaskID    string    `gorm:"size:36;index;not null"`
	Title     string    `gorm:"size:200;not null"`
	Completed bool      `gorm:"not null;default:false"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (subtaskRecord) TableName() string { return "subtasks" }

type verificationRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"size:36;uniqueIndex;not null"`
	Token      string    `gorm:"size:36;uniqueIndex;not null"`
	Verified   bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	VerifiedAt *time.Time
}

func (verificationRecord) TableName() string { return "email_verifications" }

func newUserRecord(u *models.User) userRecord {
	return userRecord{ID: u.ID, Username: u.Username, Email: u.Email, Password: u.Password, CreatedAt: u.CreatedAt}
}

func (r userRecord) model() *models.User {
	return &models.User{ID: r.ID, Username: r.Username, Email: r.Email, Password: r.Password, CreatedAt: r.CreatedAt}
}

func newTaskRecord(t *models.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		UserID:      t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		Category:    string(t.Category),
		DueAt:       t.DueAt,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (r taskRecord) model() models.Task {
	return models.Task{
		ID:          r.ID,
		OwnerID:     r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		Priority:    models.Priority(r.Priority),
		Category:    models.Category(r.Category),
		DueAt:       r.DueAt,
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newSubtaskRecord(s *models.Subtask) subtaskRecord {
	return subtaskRecord{ID: s.ID, TaskID: s.TaskID, Title: s.Title, Completed: s.Completed, Position: s.Order, CreatedAt: s.CreatedAt}
}

func (r subtaskRecord) model() models.Subtask {
	return models.Subtask{ID: r.ID, TaskID: r.TaskID, Title: r.Title, Completed: r.Completed, Order: r.Position, CreatedAt: r.CreatedAt}
}

func newVerificationRecord(v *models.EmailVerification) verificationRecord {
	return verificationRecord{ID: v.ID, UserID: v.UserID, Token: v.Token, Verified: v.Verified, CreatedAt: v.CreatedAt, VerifiedAt: v.VerifiedAt}
}

func (r verificationRecord) model() *models.EmailVerification {
	return &models.EmailVerification{ID: r.ID, UserID: r.UserID, Token: r.Token, Verified: r.Verified, CreatedAt: r.CreatedAt, VerifiedAt: r.VerifiedAt}
}
