// Package auth registers users, verifies their credentials and issues the
// bearer tokens the HTTP adapter expects.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
	"todo-api/validation"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password. The two cases are not distinguished.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)

type userStore interface {
	Get(username string) (domain.User, error)
	GetByEmail(email string) (domain.User, error)
	Create(u domain.User) error
	UpdatePassword(username, hash, updatedAt string) error
}

type payloadValidator interface {
	Validate(kind validation.Kind, payload any) error
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the payload of a login.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordInput is the payload of a password change.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Service implements registration, login and password changes over a user store.
type Service struct {
	users     userStore
	tokens    *Tokens
	validator payloadValidator
	now       func() time.Time
	log       *log.Logger
}

// NewService wires a Service.
func NewService(users userStore, tokens *Tokens, validator payloadValidator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		validator: validator,
		now:       time.Now,
		log:       logger,
	}
}

// Register creates a user. Usernames and emails must be unused.
func (s *Service) Register(in RegisterInput) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validator.Validate(validation.UserRegister, in); err != nil {
		return domain.User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:             uuid.NewString(),
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hash,
		CreatedAt:      domain.FormatTimestamp(s.now().UTC()),
	}
	if err := s.users.Create(user); err != nil {
		return domain.User{}, err
	}
	s.log.WithField("username", user.Username).Info("user registered")
	return user, nil
}

// Login checks the credentials and issues an access token for the user. The
// username field may also carry the account's email address.
func (s *Service) Login(in LoginInput) (Token, error) {
	var (
		user domain.User
		err  error
	)
	if strings.Contains(in.Username, "@") {
		user, err = s.users.GetByEmail(strings.TrimSpace(in.Username))
	} else {
		user, err = s.users.Get(in.Username)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, err
	}
	if !VerifyPassword(user.HashedPassword, in.Password) {
		s.log.WithField("username", in.Username).Warn("login rejected")
		return Token{}, ErrInvalidCredentials
	}
	signed, err := s.tokens.Issue(user.Username)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL() / time.Second),
	}, nil
}

// ChangePassword replaces the password of username after checking the
// current one. The new password must differ from the current password.
func (s *Service) ChangePassword(username string, in ChangePasswordInput) error {
	if err := s.validator.Validate(validation.PasswordChange, in); err != nil {
		return err
	}
	user, err := s.users.Get(username)
	if err != nil {
		return err
	}
	if !VerifyPassword(user.HashedPassword, in.CurrentPassword) {
		return domain.NewValidationError("current_password", "current password is incorrect")
	}
	if in.CurrentPassword == in.NewPassword {
		return domain.NewValidationError("new_password", "new password must be different from current password")
	}
	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(username, hash, domain.FormatTimestamp(s.now().UTC())); err != nil {
		return err
	}
	s.log.WithField("username", username).Info("password changed")
	return nil
}

// UserFromAuthHeader resolves the user behind the Authorization header.
func (s *Service) UserFromAuthHeader(h http.Header) (domain.User, error) {
	token, err := BearerTokenFromHeader(h)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	username, err := s.tokens.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.Get(username)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}
