package api

import (
	"context"
	"net/http"
	"time"

	"todo-api/auth"
	"todo-api/domain"
	"todo-api/service"
)

// Todos is the list and task surface the handlers call into.
type Todos interface {
	Lists(ctx context.Context) ([]domain.List, error)
	List(ctx context.Context, id string) (domain.List, error)
	CreateList(ctx context.Context, in service.CreateListInput) (domain.List, error)
	UpdateList(ctx context.Context, id string, upd domain.ListUpdate) (domain.List, error)
	DeleteList(ctx context.Context, id string) error

	Tasks(ctx context.Context, listID string) ([]domain.Task, error)
	Task(ctx context.Context, listID, taskID string) (domain.Task, error)
	AddTask(ctx context.Context, listID string, in service.CreateTaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, listID, taskID string, upd domain.TaskUpdate) (domain.Task, error)
	ToggleTask(ctx context.Context, listID, taskID string) (domain.Task, error)
	DeleteTask(ctx context.Context, listID, taskID string) error

	TasksOrderedByDeadline(ctx context.Context, listID string) ([]domain.Task, error)
	TasksByCompletion(ctx context.Context, listID string, completed bool) ([]domain.Task, error)
	TasksDueWithin(ctx context.Context, from, to time.Time) ([]domain.ListTask, error)
	TasksDueThisWeek(ctx context.Context) ([]domain.ListTask, error)
}

// Accounts is implemented by types able to register, log in and resolve users.
type Accounts interface {
	Register(in auth.RegisterInput) (domain.User, error)
	Login(in auth.LoginInput) (auth.Token, error)
	ChangePassword(username string, in auth.ChangePasswordInput) error
	UserFromAuthHeader(h http.Header) (domain.User, error)
}

type userResponse struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}
