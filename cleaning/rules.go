package cleaning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// rules applies the per-record cleaning rules and logs every record it drops.
type rules struct {
	log *log.Logger
}

func (r rules) drop(entity, id, reason string, err error) {
	entry := r.log.WithFields(log.Fields{
		"entity": entity,
		"id":     id,
		"reason": reason,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("record dropped")
}

// lists cleans the raw lists in order. The empty-name and duplicate-name
// rules are skipped when the input holds a single list.
func (r rules) lists(raw []any) []domain.List {
	out := []domain.List{}
	seenIDs := map[string]struct{}{}
	seenNames := map[string]struct{}{}
	sole := len(raw) <= 1

	for i, item := range raw {
		obj, _ := item.(map[string]any)
		id := idValue(obj["id"])
		if id == "" {
			r.drop("list", "#"+strconv.Itoa(i), "missing id", nil)
			continue
		}
		if _, dup := seenIDs[id]; dup {
			r.drop("list", id, "duplicate id", fmt.Errorf("list %s: %w", id, domain.ErrDuplicate))
			continue
		}
		seenIDs[id] = struct{}{}

		l := domain.List{
			ID:          id,
			Name:        stringValue(obj["name"]),
			Description: optionalString(obj["description"]),
			Tasks:       r.tasks(id, arrayValue(obj["tasks"])),
		}
		if l.Name == "" && !sole {
			r.drop("list", id, "empty name", nil)
			continue
		}
		if _, dup := seenNames[l.Name]; dup && !sole {
			r.drop("list", id, "duplicate name", fmt.Errorf("list name %q: %w", l.Name, domain.ErrDuplicate))
			continue
		}
		seenNames[l.Name] = struct{}{}
		out = append(out, l)
	}
	return out
}

func (r rules) tasks(listID string, raw []any) []domain.Task {
	out := []domain.Task{}
	seen := map[string]struct{}{}

	for i, item := range raw {
		obj, _ := item.(map[string]any)
		id := idValue(obj["id"])
		if id == "" {
			r.drop("task", listID+"/#"+strconv.Itoa(i), "missing id", nil)
			continue
		}
		if _, dup := seen[id]; dup {
			r.drop("task", listID+"/"+id, "duplicate id", fmt.Errorf("task %s in list %s: %w", id, listID, domain.ErrDuplicate))
			continue
		}
		seen[id] = struct{}{}

		t := domain.Task{
			ID:          id,
			Title:       stringValue(obj["title"]),
			Description: optionalString(obj["description"]),
			Completed:   truthy(obj["completed"]),
			Deadline:    r.timestamp("task", listID+"/"+id, "deadline", obj["deadline"]),
		}
		if created := r.timestamp("task", listID+"/"+id, "created_at", obj["created_at"]); created != nil {
			t.CreatedAt = *created
		}
		if t.Title == "" {
			r.drop("task", listID+"/"+id, "empty title", nil)
			continue
		}
		out = append(out, t)
	}
	return out
}

// users cleans the raw users document. Records keep their id and fall back
// to the document key when they have none.
func (r rules) users(raw map[string]any) domain.Users {
	out := domain.Users{}
	for key, item := range raw {
		obj, _ := item.(map[string]any)
		if len(obj) == 0 {
			r.drop("user", key, "empty record", nil)
			continue
		}
		u := domain.User{
			ID:             idValue(obj["id"]),
			Username:       stringValue(obj["username"]),
			Email:          strings.ToLower(stringValue(obj["email"])),
			HashedPassword: rawString(obj["hashed_password"]),
		}
		if u.ID == "" {
			u.ID = key
		}
		if u.Username == "" {
			r.drop("user", key, "empty username", nil)
			continue
		}
		if u.Email == "" {
			r.drop("user", key, "empty email", nil)
			continue
		}
		if !emailPattern.MatchString(u.Email) {
			r.drop("user", key, "invalid email", nil)
			continue
		}
		if created := r.timestamp("user", key, "created_at", obj["created_at"]); created != nil {
			u.CreatedAt = *created
		}
		u.UpdatedAt = r.timestamp("user", key, "updated_at", obj["updated_at"])
		out[key] = u
	}
	return out
}

// timestamp canonicalises a datetime field. Values that do not parse are
// removed from the record.
func (r rules) timestamp(entity, id, field string, v any) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if ok {
		if canonical, ok := domain.CanonicalTimestamp(s); ok {
			return &canonical
		}
	}
	r.log.WithFields(log.Fields{
		"entity": entity,
		"id":     id,
		"field":  field,
		"value":  v,
	}).Warn("invalid datetime removed")
	return nil
}

// stringValue renders v as a trimmed string. Missing values become "".
func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func rawString(v any) string {
	s, _ := v.(string)
	return s
}

// idValue accepts string and numeric ids. Anything else counts as missing.
func idValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func optionalString(v any) *string {
	s := stringValue(v)
	if s == "" {
		return nil
	}
	return &s
}

func arrayValue(v any) []any {
	a, _ := v.([]any)
	return a
}

// truthy coerces a JSON value to a boolean: false, zero, empty strings and
// empty collections are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
