package domain

// Document is the whole persisted lists file.
type Document struct {
	Lists []List `json:"lists"`
}

// List is a named collection of tasks. Tasks are embedded, so deleting a list
// deletes its tasks.
type List struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Tasks       []Task  `json:"tasks"`
}

// Task represents a single item inside a list.
type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	Deadline    *string `json:"deadline,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// ListTask is a task copy annotated with the list it was found in.
type ListTask struct {
	Task
	ListID   string `json:"list_id"`
	ListName string `json:"list_name"`
}

// ListUpdate carries partial updates for a list. Nil fields are left untouched.
type ListUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// TaskUpdate carries partial updates for a task. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u ListUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil
}

// IsEmpty reports whether the update carries no fields.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil && u.Deadline == nil
}

// Apply overwrites the provided fields on l. Tasks are never touched.
func (u ListUpdate) Apply(l *List) {
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.Description != nil {
		l.Description = cloneString(u.Description)
	}
}

// Apply overwrites the provided fields on t.
func (u TaskUpdate) Apply(t *Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = cloneString(u.Description)
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.Deadline != nil {
		t.Deadline = cloneString(u.Deadline)
	}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d.Lists == nil {
		return Document{Lists: []List{}}
	}
	out := Document{Lists: make([]List, len(d.Lists))}
	for i := range d.Lists {
		out.Lists[i] = d.Lists[i].Clone()
	}
	return out
}

// Clone returns a deep copy of the list including its tasks.
func (l List) Clone() List {
	out := l
	out.Description = cloneString(l.Description)
	out.Tasks = make([]Task, len(l.Tasks))
	for i := range l.Tasks {
		out.Tasks[i] = l.Tasks[i].Clone()
	}
	return out
}

// Clone returns a copy of the task that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	out.Description = cloneString(t.Description)
	out.Deadline = cloneString(t.Deadline)
	return out
}

// FindList returns the index of the list with id, or -1.
func (d Document) FindList(id string) int {
	for i := range d.Lists {
		if d.Lists[i].ID == id {
			return i
		}
	}
	return -1
}

// FindTask returns the index of the first task with id, or -1.
func (l List) FindTask(id string) int {
	for i := range l.Tasks {
		if l.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
