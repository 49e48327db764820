package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

// UserStore persists the users document, keyed by username. Create and
// UpdatePassword hold the store's WriteGuard for their read-modify-write.
type UserStore struct {
	path  string
	guard WriteGuard
	log   *log.Logger
}

// NewUserStore creates a UserStore for the given path. A nil guard serialises
// writers within this process only.
func NewUserStore(path string, guard WriteGuard, logger *log.Logger) *UserStore {
	if guard == nil {
		guard = &LocalGuard{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &UserStore{path: path, guard: guard, log: logger}
}

// Read loads all users. Missing files are created empty and malformed files
// read as empty, matching FileStore.
func (s *UserStore) Read() (domain.Users, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		users := domain.Users{}
		if err := s.Write(users); err != nil {
			return nil, err
		}
		return users, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "read", Path: s.path, Err: err}
	}
	users := domain.Users{}
	if err := sonic.ConfigStd.Unmarshal(data, &users); err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("malformed users file, serving empty document")
		return domain.Users{}, nil
	}
	if users == nil {
		users = domain.Users{}
	}
	return users, nil
}

// Write replaces the users file.
func (s *UserStore) Write(users domain.Users) error {
	if users == nil {
		users = domain.Users{}
	}
	return writeJSON(s.path, users)
}

// Get returns the user with the given username.
func (s *UserStore) Get(username string) (domain.User, error) {
	users, err := s.Read()
	if err != nil {
		return domain.User{}, err
	}
	u, ok := users[username]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
	}
	return u, nil
}

// GetByEmail returns the user registered with email, compared case-insensitively.
func (s *UserStore) GetByEmail(email string) (domain.User, error) {
	users, err := s.Read()
	if err != nil {
		return domain.User{}, err
	}
	if u, ok := findByEmail(users, email); ok {
		return u, nil
	}
	return domain.User{}, fmt.Errorf("email %s: %w", email, domain.ErrNotFound)
}

func findByEmail(users domain.Users, email string) (domain.User, bool) {
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (s *UserStore) mutate(op string, fn func(users domain.Users) error) error {
	release, err := s.guard.Acquire(context.Background())
	if err != nil {
		return fmt.Errorf("%s: acquire write guard: %w", op, err)
	}
	defer release()

	users, err := s.Read()
	if err != nil {
		return err
	}
	if err := fn(users); err != nil {
		return err
	}
	return s.Write(users)
}

// Create stores a new user. Usernames and emails must be unique.
func (s *UserStore) Create(u domain.User) error {
	return s.mutate("create_user", func(users domain.Users) error {
		if _, exists := users[u.Username]; exists {
			return fmt.Errorf("username %s: %w", u.Username, domain.ErrDuplicate)
		}
		if _, taken := findByEmail(users, u.Email); taken {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrDuplicate)
		}
		users[u.Username] = u
		return nil
	})
}

// UpdatePassword replaces the stored hash and stamps updated_at.
func (s *UserStore) UpdatePassword(username, hash, updatedAt string) error {
	return s.mutate("update_password", func(users domain.Users) error {
		u, ok := users[username]
		if !ok {
			return fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
		}
		u.HashedPassword = hash
		u.UpdatedAt = &updatedAt
		users[username] = u
		return nil
	})
}
