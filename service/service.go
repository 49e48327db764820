// Package service exposes the list and task operations used by the HTTP
// adapter. It validates input, delegates storage to the cache layer and
// runs the read-side queries, tracing and timing every call.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"todo-api/domain"
	"todo-api/query"
	"todo-api/validation"
)

type store interface {
	Document(ctx context.Context) (domain.Document, error)
	Lists(ctx context.Context) ([]domain.List, error)
	List(ctx context.Context, id string) (domain.List, error)
	Tasks(ctx context.Context, listID string) ([]domain.Task, error)
	Task(ctx context.Context, listID, taskID string) (domain.Task, error)
	CreateList(ctx context.Context, l domain.List) (domain.List, error)
	UpdateList(ctx context.Context, id string, upd domain.ListUpdate) (domain.List, error)
	DeleteList(ctx context.Context, id string) error
	AddTask(ctx context.Context, listID string, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, listID, taskID string, upd domain.TaskUpdate) (domain.Task, error)
	ToggleTask(ctx context.Context, listID, taskID string) (domain.Task, error)
	DeleteTask(ctx context.Context, listID, taskID string) error
}

type payloadValidator interface {
	Validate(kind validation.Kind, payload any) error
}

var errEmptyUpdate = domain.NewValidationError("", "no fields to update")

// CreateListInput is the payload for a new list.
type CreateListInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// CreateTaskInput is the payload for a new task.
type CreateTaskInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	Deadline    *string `json:"deadline,omitempty"`
}

// Service is the façade over the cached store and the query engine.
type Service struct {
	store     store
	validator payloadValidator
	now       func() time.Time
	newID     func() string
	log       *log.Logger
}

// New creates a Service.
func New(st store, validator payloadValidator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{
		store:     st,
		validator: validator,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger,
	}
}

// Lists returns every list.
func (s *Service) Lists(ctx context.Context) (lists []domain.List, err error) {
	ctx, op := s.begin(ctx, "lists")
	defer func() { op.end(s.now(), len(lists), err) }()

	return s.store.Lists(ctx)
}

// List returns a single list.
func (s *Service) List(ctx context.Context, id string) (l domain.List, err error) {
	ctx, op := s.begin(ctx, "get_list", attribute.String(attrListID, id))
	defer func() { op.end(s.now(), found(err), err) }()

	return s.store.List(ctx, id)
}

// CreateList validates in and stores a new, empty list.
func (s *Service) CreateList(ctx context.Context, in CreateListInput) (l domain.List, err error) {
	ctx, op := s.begin(ctx, "create_list")
	defer func() { op.end(s.now(), found(err), err) }()

	if err := s.validator.Validate(validation.ListCreate, in); err != nil {
		return domain.List{}, err
	}
	return s.store.CreateList(ctx, domain.List{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		Tasks:       []domain.Task{},
	})
}

// UpdateList applies a partial update to a list. Its tasks are kept.
func (s *Service) UpdateList(ctx context.Context, id string, upd domain.ListUpdate) (l domain.List, err error) {
	ctx, op := s.begin(ctx, "update_list", attribute.String(attrListID, id))
	defer func() { op.end(s.now(), found(err), err) }()

	if upd.IsEmpty() {
		return domain.List{}, errEmptyUpdate
	}
	if err := s.validator.Validate(validation.ListUpdate, upd); err != nil {
		return domain.List{}, err
	}
	return s.store.UpdateList(ctx, id, upd)
}

// DeleteList removes a list and all of its tasks.
func (s *Service) DeleteList(ctx context.Context, id string) (err error) {
	ctx, op := s.begin(ctx, "delete_list", attribute.String(attrListID, id))
	defer func() { op.end(s.now(), 0, err) }()

	return s.store.DeleteList(ctx, id)
}

// Tasks returns the tasks of a list in stored order.
func (s *Service) Tasks(ctx context.Context, listID string) (tasks []domain.Task, err error) {
	ctx, op := s.begin(ctx, "list_tasks", attribute.String(attrListID, listID))
	defer func() { op.end(s.now(), len(tasks), err) }()

	return s.store.Tasks(ctx, listID)
}

// Task returns one task of a list.
func (s *Service) Task(ctx context.Context, listID, taskID string) (t domain.Task, err error) {
	ctx, op := s.begin(ctx, "get_task", attribute.String(attrListID, listID), attribute.String(attrTaskID, taskID))
	defer func() { op.end(s.now(), found(err), err) }()

	return s.store.Task(ctx, listID, taskID)
}

// AddTask validates in and appends a new task to a list. The deadline, when
// given, must parse and is stored in canonical form.
func (s *Service) AddTask(ctx context.Context, listID string, in CreateTaskInput) (t domain.Task, err error) {
	ctx, op := s.begin(ctx, "add_task", attribute.String(attrListID, listID))
	defer func() { op.end(s.now(), found(err), err) }()

	if err := s.validator.Validate(validation.TaskCreate, in); err != nil {
		return domain.Task{}, err
	}
	deadline, err := canonicalDeadline(in.Deadline)
	if err != nil {
		return domain.Task{}, err
	}
	return s.store.AddTask(ctx, listID, domain.Task{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		Deadline:    deadline,
		CreatedAt:   domain.FormatTimestamp(s.now().UTC()),
	})
}

// UpdateTask applies a partial update to a task.
func (s *Service) UpdateTask(ctx context.Context, listID, taskID string, upd domain.TaskUpdate) (t domain.Task, err error) {
	ctx, op := s.begin(ctx, "update_task", attribute.String(attrListID, listID), attribute.String(attrTaskID, taskID))
	defer func() { op.end(s.now(), found(err), err) }()

	if upd.IsEmpty() {
		return domain.Task{}, errEmptyUpdate
	}
	if err := s.validator.Validate(validation.TaskUpdate, upd); err != nil {
		return domain.Task{}, err
	}
	if upd.Deadline, err = canonicalDeadline(upd.Deadline); err != nil {
		return domain.Task{}, err
	}
	return s.store.UpdateTask(ctx, listID, taskID, upd)
}

// ToggleTask flips the completed flag of a task.
func (s *Service) ToggleTask(ctx context.Context, listID, taskID string) (t domain.Task, err error) {
	ctx, op := s.begin(ctx, "toggle_task", attribute.String(attrListID, listID), attribute.String(attrTaskID, taskID))
	defer func() { op.end(s.now(), found(err), err) }()

	return s.store.ToggleTask(ctx, listID, taskID)
}

// DeleteTask removes a task from a list.
func (s *Service) DeleteTask(ctx context.Context, listID, taskID string) (err error) {
	ctx, op := s.begin(ctx, "delete_task", attribute.String(attrListID, listID), attribute.String(attrTaskID, taskID))
	defer func() { op.end(s.now(), 0, err) }()

	return s.store.DeleteTask(ctx, listID, taskID)
}

// TasksOrderedByDeadline returns the tasks of a list, earliest deadline first.
func (s *Service) TasksOrderedByDeadline(ctx context.Context, listID string) (tasks []domain.Task, err error) {
	ctx, op := s.begin(ctx, "tasks_ordered_by_deadline", attribute.String(attrListID, listID))
	defer func() { op.end(s.now(), len(tasks), err) }()

	all, err := s.store.Tasks(ctx, listID)
	if err != nil {
		return nil, err
	}
	return query.OrderedByDeadline(all), nil
}

// TasksByCompletion returns the tasks of a list with the given completed flag.
func (s *Service) TasksByCompletion(ctx context.Context, listID string, completed bool) (tasks []domain.Task, err error) {
	ctx, op := s.begin(ctx, "tasks_by_completion", attribute.String(attrListID, listID), attribute.Bool("todo.completed", completed))
	defer func() { op.end(s.now(), len(tasks), err) }()

	all, err := s.store.Tasks(ctx, listID)
	if err != nil {
		return nil, err
	}
	return query.ByCompletion(all, completed), nil
}

// TasksDueWithin returns tasks across all lists due between from and to,
// both inclusive.
func (s *Service) TasksDueWithin(ctx context.Context, from, to time.Time) (tasks []domain.ListTask, err error) {
	ctx, op := s.begin(ctx, "tasks_due_within")
	defer func() { op.end(s.now(), len(tasks), err) }()

	if to.Before(from) {
		return nil, domain.NewValidationError("to", "must not be before from")
	}
	doc, err := s.store.Document(ctx)
	if err != nil {
		return nil, err
	}
	return query.DueWithin(doc, from, to), nil
}

// TasksDueThisWeek returns tasks due from today through the next seven days.
func (s *Service) TasksDueThisWeek(ctx context.Context) (tasks []domain.ListTask, err error) {
	ctx, op := s.begin(ctx, "tasks_due_this_week")
	defer func() { op.end(s.now(), len(tasks), err) }()

	doc, err := s.store.Document(ctx)
	if err != nil {
		return nil, err
	}
	return query.DueThisWeek(doc, s.now()), nil
}

func canonicalDeadline(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	canonical, ok := domain.CanonicalTimestamp(*raw)
	if !ok {
		return nil, domain.NewValidationError("deadline", "%q is not an ISO-8601 timestamp", *raw)
	}
	return &canonical, nil
}

func found(err error) int {
	if err != nil {
		return 0
	}
	return 1
}
