package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

// DefaultTTL is how long a fetched document is served from memory.
const DefaultTTL = 30 * time.Second

type backend interface {
	Read() (domain.Document, error)
	Write(doc domain.Document) error
}

// State describes the validity of the cached document.
type State int

const (
	StateEmpty State = iota
	StateValid
	StateStale
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateValid:
		return "valid"
	case StateStale:
		return "stale"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type snapshot struct {
	doc       domain.Document
	fetchedAt time.Time
	version   uint64
}

type listIndex struct {
	positions map[string]int
	version   uint64
}

// Cache wraps a flat-file store with a time-boxed copy of the whole document
// and a lazily derived id index. A single version counter ties the two
// together: it is bumped on every reload and every invalidation, and neither
// the document nor the index is served unless it carries the current version.
//
// Writes made by another process are not observed until the TTL lapses.
type Cache struct {
	base  backend
	guard WriteGuard
	ttl   time.Duration
	now   func() time.Time
	log   *log.Logger

	mu      sync.Mutex
	version uint64
	loaded  bool
	snap    *snapshot
	index   *listIndex
}

// NewCache creates a Cache over base. A nil guard serialises writers within
// this process only; a non-positive ttl disables caching.
func NewCache(base backend, guard WriteGuard, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if guard == nil {
		guard = &LocalGuard{}
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{
		base:  base,
		guard: guard,
		ttl:   ttl,
		now:   time.Now,
		log:   logger,
	}
}

// State reports whether the cached document is empty, valid or stale.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.loaded:
		return StateEmpty
	case c.validLocked():
		return StateValid
	default:
		return StateStale
	}
}

// Version returns the current consistency token.
func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Invalidate drops the cached document and index.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Cache) invalidateLocked() {
	c.version++
	c.snap = nil
	c.index = nil
}

func (c *Cache) validLocked() bool {
	return c.snap != nil &&
		c.snap.version == c.version &&
		c.now().Sub(c.snap.fetchedAt) < c.ttl
}

func (c *Cache) loadLocked() (*snapshot, error) {
	if c.validLocked() {
		c.log.WithField("version", c.version).Debug("cache hit")
		return c.snap, nil
	}
	doc, err := c.base.Read()
	if err != nil {
		return nil, err
	}
	c.version++
	c.loaded = true
	c.snap = &snapshot{doc: doc, fetchedAt: c.now(), version: c.version}
	c.index = nil
	c.log.WithFields(log.Fields{"version": c.version, "lists": len(doc.Lists)}).Debug("cache miss, document reloaded")
	return c.snap, nil
}

func (c *Cache) indexLocked(snap *snapshot) map[string]int {
	if c.index != nil && c.index.version == snap.version {
		return c.index.positions
	}
	positions := make(map[string]int, len(snap.doc.Lists))
	for i, l := range snap.doc.Lists {
		if _, dup := positions[l.ID]; dup {
			continue
		}
		positions[l.ID] = i
	}
	c.index = &listIndex{positions: positions, version: snap.version}
	return positions
}

// Document returns a copy of the whole document.
func (c *Cache) Document(ctx context.Context) (domain.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, err := c.loadLocked()
	if err != nil {
		return domain.Document{}, err
	}
	return snap.doc.Clone(), nil
}

// Lists returns copies of every list.
func (c *Cache) Lists(ctx context.Context) ([]domain.List, error) {
	doc, err := c.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Lists, nil
}

// List returns the list with id through the id index.
func (c *Cache) List(ctx context.Context, id string) (domain.List, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, err := c.loadLocked()
	if err != nil {
		return domain.List{}, err
	}
	pos, ok := c.indexLocked(snap)[id]
	if !ok {
		return domain.List{}, fmt.Errorf("list %s: %w", id, domain.ErrNotFound)
	}
	return snap.doc.Lists[pos].Clone(), nil
}

// Tasks returns the tasks of a list.
func (c *Cache) Tasks(ctx context.Context, listID string) ([]domain.Task, error) {
	l, err := c.List(ctx, listID)
	if err != nil {
		return nil, err
	}
	return l.Tasks, nil
}

// Task returns a single task of a list.
func (c *Cache) Task(ctx context.Context, listID, taskID string) (domain.Task, error) {
	l, err := c.List(ctx, listID)
	if err != nil {
		return domain.Task{}, err
	}
	i := l.FindTask(taskID)
	if i < 0 {
		return domain.Task{}, fmt.Errorf("task %s in list %s: %w", taskID, listID, domain.ErrNotFound)
	}
	return l.Tasks[i], nil
}

// mutate runs a read-modify-write cycle against the store, bypassing the
// cache. Once a write has been attempted the cache is invalidated, whether
// the write succeeded or not.
func (c *Cache) mutate(ctx context.Context, op string, fn func(doc *domain.Document) error) error {
	release, err := c.guard.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire write guard: %w", op, err)
	}
	defer release()

	doc, err := c.base.Read()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}

	werr := c.base.Write(doc)
	c.Invalidate()
	if werr != nil {
		c.log.WithError(werr).WithField("op", op).Error("write failed, cache invalidated")
		return werr
	}
	c.log.WithField("op", op).Debug("write committed, cache invalidated")
	return nil
}

// CreateList appends l to the document. Ids and names are not checked for
// uniqueness.
func (c *Cache) CreateList(ctx context.Context, l domain.List) (domain.List, error) {
	l = l.Clone()
	err := c.mutate(ctx, "create_list", func(doc *domain.Document) error {
		doc.Lists = append(doc.Lists, l)
		return nil
	})
	if err != nil {
		return domain.List{}, err
	}
	return l.Clone(), nil
}

// UpdateList applies upd to the stored list. Its tasks are carried over from
// the store as they are.
func (c *Cache) UpdateList(ctx context.Context, id string, upd domain.ListUpdate) (domain.List, error) {
	var out domain.List
	err := c.mutate(ctx, "update_list", func(doc *domain.Document) error {
		i := doc.FindList(id)
		if i < 0 {
			return fmt.Errorf("list %s: %w", id, domain.ErrNotFound)
		}
		upd.Apply(&doc.Lists[i])
		out = doc.Lists[i].Clone()
		return nil
	})
	if err != nil {
		return domain.List{}, err
	}
	return out, nil
}

// DeleteList removes every list with id together with its tasks.
func (c *Cache) DeleteList(ctx context.Context, id string) error {
	return c.mutate(ctx, "delete_list", func(doc *domain.Document) error {
		kept := doc.Lists[:0]
		for _, l := range doc.Lists {
			if l.ID != id {
				kept = append(kept, l)
			}
		}
		if len(kept) == len(doc.Lists) {
			return fmt.Errorf("list %s: %w", id, domain.ErrNotFound)
		}
		doc.Lists = kept
		return nil
	})
}

// AddTask appends t to the list. Task ids are not checked for uniqueness.
func (c *Cache) AddTask(ctx context.Context, listID string, t domain.Task) (domain.Task, error) {
	t = t.Clone()
	err := c.mutate(ctx, "add_task", func(doc *domain.Document) error {
		i := doc.FindList(listID)
		if i < 0 {
			return fmt.Errorf("list %s: %w", listID, domain.ErrNotFound)
		}
		doc.Lists[i].Tasks = append(doc.Lists[i].Tasks, t)
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t.Clone(), nil
}

// UpdateTask applies upd to a task.
func (c *Cache) UpdateTask(ctx context.Context, listID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	return c.editTask(ctx, "update_task", listID, taskID, upd.Apply)
}

// ToggleTask flips the completed flag of a task.
func (c *Cache) ToggleTask(ctx context.Context, listID, taskID string) (domain.Task, error) {
	return c.editTask(ctx, "toggle_task", listID, taskID, func(t *domain.Task) {
		t.Completed = !t.Completed
	})
}

func (c *Cache) editTask(ctx context.Context, op, listID, taskID string, edit func(*domain.Task)) (domain.Task, error) {
	var out domain.Task
	err := c.mutate(ctx, op, func(doc *domain.Document) error {
		i := doc.FindList(listID)
		if i < 0 {
			return fmt.Errorf("list %s: %w", listID, domain.ErrNotFound)
		}
		j := doc.Lists[i].FindTask(taskID)
		if j < 0 {
			return fmt.Errorf("task %s in list %s: %w", taskID, listID, domain.ErrNotFound)
		}
		edit(&doc.Lists[i].Tasks[j])
		out = doc.Lists[i].Tasks[j].Clone()
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

// DeleteTask removes every task with taskID from the list.
func (c *Cache) DeleteTask(ctx context.Context, listID, taskID string) error {
	return c.mutate(ctx, "delete_task", func(doc *domain.Document) error {
		i := doc.FindList(listID)
		if i < 0 {
			return fmt.Errorf("list %s: %w", listID, domain.ErrNotFound)
		}
		tasks := doc.Lists[i].Tasks
		kept := make([]domain.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.ID != taskID {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(tasks) {
			return fmt.Errorf("task %s in list %s: %w", taskID, listID, domain.ErrNotFound)
		}
		doc.Lists[i].Tasks = kept
		return nil
	})
}
