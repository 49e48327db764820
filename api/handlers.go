// Package api exposes the todo service over HTTP with echo.
package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todo-api/auth"
	"todo-api/domain"
	"todo-api/service"
)

const maxBodySize = 1 << 20

type handlers struct {
	todos    Todos
	accounts Accounts
	log      *log.Logger
}

// Register wires up all API routes on the provided Echo instance. Every route
// under /api except registration and login requires a bearer token.
func Register(e *echo.Echo, todos Todos, accounts Accounts, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	h := &handlers{todos: todos, accounts: accounts, log: logger}

	e.Use(Observability(logger), h.InflateRequestBody())
	e.GET("/healthz", h.healthz)
	e.POST("/api/auth/register", h.register)
	e.POST("/api/auth/login", h.login)

	g := e.Group("/api", h.RequireAuth())
	g.GET("/auth/me", h.me)
	g.PUT("/auth/change-password", h.changePassword)

	g.GET("/lists", h.getLists)
	g.POST("/lists", h.createList)
	g.GET("/lists/:list_id", h.getList)
	g.PUT("/lists/:list_id", h.updateList)
	g.DELETE("/lists/:list_id", h.deleteList)

	g.GET("/lists/:list_id/tasks", h.getTasks)
	g.POST("/lists/:list_id/tasks", h.createTask)
	g.GET("/lists/:list_id/tasks/ordered", h.getTasksOrdered)
	g.GET("/lists/:list_id/tasks/:task_id", h.getTask)
	g.PUT("/lists/:list_id/tasks/:task_id", h.updateTask)
	g.PATCH("/lists/:list_id/tasks/:task_id/toggle", h.toggleTask)
	g.DELETE("/lists/:list_id/tasks/:task_id", h.deleteTask)

	g.GET("/tasks/due", h.getTasksDue)
	g.GET("/tasks/due-this-week", h.getTasksDueThisWeek)
}

func (h *handlers) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func (h *handlers) register(c echo.Context) error {
	var in auth.RegisterInput
	if err := decode(c, &in); err != nil {
		return h.fail(c, err)
	}
	user, err := h.accounts.Register(in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, newUserResponse(user))
}

func (h *handlers) login(c echo.Context) error {
	var in auth.LoginInput
	if err := decode(c, &in); err != nil {
		return h.fail(c, err)
	}
	token, err := h.accounts.Login(in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, token)
}

func (h *handlers) me(c echo.Context) error {
	user, _ := currentUser(c)
	return c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *handlers) changePassword(c echo.Context) error {
	var in auth.ChangePasswordInput
	if err := decode(c, &in); err != nil {
		return h.fail(c, err)
	}
	user, _ := currentUser(c)
	if err := h.accounts.ChangePassword(user.Username, in); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (h *handlers) getLists(c echo.Context) error {
	lists, err := h.todos.Lists(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, lists)
}

func (h *handlers) createList(c echo.Context) error {
	var in service.CreateListInput
	if err := decode(c, &in); err != nil {
		return h.fail(c, err)
	}
	l, err := h.todos.CreateList(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *handlers) getList(c echo.Context) error {
	l, err := h.todos.List(c.Request().Context(), c.Param("list_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *handlers) updateList(c echo.Context) error {
	var upd domain.ListUpdate
	if err := decode(c, &upd); err != nil {
		return h.fail(c, err)
	}
	l, err := h.todos.UpdateList(c.Request().Context(), c.Param("list_id"), upd)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *handlers) deleteList(c echo.Context) error {
	if err := h.todos.DeleteList(c.Request().Context(), c.Param("list_id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getTasks(c echo.Context) error {
	ctx := c.Request().Context()
	listID := c.Param("list_id")

	var (
		tasks []domain.Task
		err   error
	)
	if raw := c.QueryParam("completed"); raw != "" {
		completed, perr := strconv.ParseBool(raw)
		if perr != nil {
			return h.fail(c, domain.NewValidationError("completed", "must be true or false"))
		}
		tasks, err = h.todos.TasksByCompletion(ctx, listID, completed)
	} else {
		tasks, err = h.todos.Tasks(ctx, listID)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *handlers) getTasksOrdered(c echo.Context) error {
	tasks, err := h.todos.TasksOrderedByDeadline(c.Request().Context(), c.Param("list_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *handlers) createTask(c echo.Context) error {
	var in service.CreateTaskInput
	if err := decode(c, &in); err != nil {
		return h.fail(c, err)
	}
	t, err := h.todos.AddTask(c.Request().Context(), c.Param("list_id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *handlers) getTask(c echo.Context) error {
	t, err := h.todos.Task(c.Request().Context(), c.Param("list_id"), c.Param("task_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *handlers) updateTask(c echo.Context) error {
	var upd domain.TaskUpdate
	if err := decode(c, &upd); err != nil {
		return h.fail(c, err)
	}
	t, err := h.todos.UpdateTask(c.Request().Context(), c.Param("list_id"), c.Param("task_id"), upd)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *handlers) toggleTask(c echo.Context) error {
	t, err := h.todos.ToggleTask(c.Request().Context(), c.Param("list_id"), c.Param("task_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *handlers) deleteTask(c echo.Context) error {
	if err := h.todos.DeleteTask(c.Request().Context(), c.Param("list_id"), c.Param("task_id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getTasksDue(c echo.Context) error {
	from, ok := domain.ParseTimestamp(c.QueryParam("from"))
	if !ok {
		return h.fail(c, domain.NewValidationError("from", "must be an ISO-8601 timestamp"))
	}
	to, ok := domain.ParseTimestamp(c.QueryParam("to"))
	if !ok {
		return h.fail(c, domain.NewValidationError("to", "must be an ISO-8601 timestamp"))
	}
	tasks, err := h.todos.TasksDueWithin(c.Request().Context(), from.Time, to.Time)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *handlers) getTasksDueThisWeek(c echo.Context) error {
	tasks, err := h.todos.TasksDueThisWeek(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}
