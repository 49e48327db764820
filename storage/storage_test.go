package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"todo-api/domain"
)

func TestFileStoreReadMissingCreatesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "data.json")
	store := NewFileStore(path, nil)

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if doc.Lists == nil || len(doc.Lists) != 0 {
		t.Fatalf("expected empty lists, got %#v", doc.Lists)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file to be materialised: %v", err)
	}
	if !strings.Contains(string(data), `"lists": []`) {
		t.Fatalf("unexpected file content: %q", data)
	}
}

func TestFileStoreReadMalformedIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	logger, hook := test.NewNullLogger()
	store := NewFileStore(path, logger)

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("malformed read should not fail: %v", err)
	}
	if len(doc.Lists) != 0 {
		t.Fatalf("expected empty document, got %#v", doc)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected a warning to be logged, got %#v", entry)
	}
}

func TestFileStoreWriteThenRead(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "data.json"), nil)
	deadline := "2024-12-30T00:00:00"
	desc := "weekly shop"
	doc := domain.Document{Lists: []domain.List{{
		ID:          "l1",
		Name:        "Groceries",
		Description: &desc,
		Tasks: []domain.Task{
			{ID: "t1", Title: "Milk", Deadline: &deadline, CreatedAt: "2024-12-01T10:00:00+00:00"},
			{ID: "t2", Title: "Bread", Completed: true},
		},
	}, {ID: "l2", Name: "Empty", Tasks: []domain.Task{}}}}

	if err := store.Write(doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, doc)
	}
}

func TestFileStoreReadFillsMissingTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"lists":[{"id":"l1","name":"A"}]}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	doc, err := NewFileStore(path, nil).Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if doc.Lists[0].Tasks == nil {
		t.Fatalf("expected tasks to be normalised to an empty slice")
	}
}

func TestFileStoreWriteErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := NewFileStore(filepath.Join(blocker, "data.json"), nil)

	err := store.Write(domain.Document{})
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Op != "write" {
		t.Fatalf("unexpected op: %s", storageErr.Op)
	}
}

func TestUserStoreCreateAndLookup(t *testing.T) {
	store := NewUserStore(filepath.Join(t.TempDir(), "users.json"), nil, nil)
	alice := domain.User{ID: "u1", Username: "alice", Email: "alice@example.com", HashedPassword: "h"}

	if err := store.Create(alice); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get("alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, alice) {
		t.Fatalf("unexpected user: %#v", got)
	}
	byEmail, err := store.GetByEmail("ALICE@example.com")
	if err != nil || byEmail.Username != "alice" {
		t.Fatalf("get by email: %#v, %v", byEmail, err)
	}
	if _, err := store.Get("bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserStoreCreateRejectsDuplicates(t *testing.T) {
	store := NewUserStore(filepath.Join(t.TempDir(), "users.json"), nil, nil)
	if err := store.Create(domain.User{Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	tests := []struct {
		name string
		user domain.User
	}{
		{name: "username", user: domain.User{Username: "alice", Email: "other@example.com"}},
		{name: "email", user: domain.User{Username: "alice2", Email: "Alice@Example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Create(tt.user); !errors.Is(err, domain.ErrDuplicate) {
				t.Fatalf("expected duplicate error, got %v", err)
			}
		})
	}
}

func TestUserStoreUpdatePassword(t *testing.T) {
	store := NewUserStore(filepath.Join(t.TempDir(), "users.json"), nil, nil)
	if err := store.Create(domain.User{Username: "alice", Email: "alice@example.com", HashedPassword: "old"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdatePassword("alice", "new", "2025-01-01T00:00:00+00:00"); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, err := store.Get("alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.HashedPassword != "new" || u.UpdatedAt == nil || *u.UpdatedAt != "2025-01-01T00:00:00+00:00" {
		t.Fatalf("unexpected user after update: %#v", u)
	}
	if err := store.UpdatePassword("bob", "x", "now"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserStoreConcurrentCreatesKeepEveryUser(t *testing.T) {
	store := NewUserStore(filepath.Join(t.TempDir(), "users.json"), nil, nil)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user%02d", i)
			errs <- store.Create(domain.User{Username: name, Email: name + "@example.com"})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	users, err := store.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(users) != n {
		t.Fatalf("expected %d users, got %d", n, len(users))
	}
}

func TestUserStoreWritesHoldGuard(t *testing.T) {
	guard := &countingGuard{}
	store := NewUserStore(filepath.Join(t.TempDir(), "users.json"), guard, nil)
	if err := store.Create(domain.User{Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdatePassword("alice", "h", "now"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if guard.acquired != 2 || guard.released != 2 {
		t.Fatalf("expected two balanced acquisitions, got %d/%d", guard.acquired, guard.released)
	}
}
