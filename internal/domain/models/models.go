package models

import "time"

type User struct {
	ID        string    `json:"id" validate:"omitempty,uuid"`
	Username  string    `json:"username" validate:"required,min=3,max=150,alphanum"`
	Email     string    `json:"email" validate:"required,email,max=254"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=1"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirmRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"omitempty,max=10000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category    string     `json:"category" validate:"omitempty,oneof=personal work school shopping travel health finance other"`
	DueAt       *time.Time `json:"due_at"`
}

// UpdateTaskRequest carries only the fields the caller wants to change.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category    *string    `json:"category" validate:"omitempty,oneof=personal work school shopping travel health finance other"`
	DueAt       *time.Time `json:"due_at"`
	ClearDueAt  bool       `json:"clear_due_at"`
	Completed   *bool      `json:"completed"`
}

type CreateSubtaskRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Order *int   `json:"order" validate:"omitempty,min=0"`
}

func (r CreateTaskRequest) Draft() TaskDraft {
	return TaskDraft{
		Title:       r.Title,
		Description: r.Description,
		Priority:    Priority(r.Priority),
		Category:    Category(r.Category),
		DueAt:       r.DueAt,
	}
}

func (r UpdateTaskRequest) Patch() TaskPatch {
	patch := TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		DueAt:       r.DueAt,
		ClearDueAt:  r.ClearDueAt,
		Completed:   r.Completed,
	}
	if r.Priority != nil {
		p := Priority(*r.Priority)
		patch.Priority = &p
	}
	if r.Category != nil {
		c := Category(*r.Category)
		patch.Category = &c
	}
	return patch
}
