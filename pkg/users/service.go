// Package users implements account registration and self-service profile
// management. Accounts are the only resource not scoped to a project:
// any authenticated user may look profiles up (to pick contributors), but
// only the account owner may change or delete one.
package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/softdesk/support/pkg/audit"
	"github.com/softdesk/support/pkg/observability"
	"github.com/softdesk/support/pkg/storage"
)

// ErrInvalidCredentials is returned when a username/password pair does not
// match. It is deliberately the same for unknown usernames and wrong
// passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 8

// Service implements account operations over a store
type Service struct {
	store    storage.Store
	recorder audit.Recorder
}

// NewService creates the users service
func NewService(store storage.Store, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{store: store, recorder: recorder}
}

// RegisterRequest carries the fields accepted at registration
type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	Email           string `json:"email"`
	Age             int    `json:"age"`
	CanBeContacted  bool   `json:"can_be_contacted"`
	CanDataBeShared bool   `json:"can_data_be_shared"`
}

// Register creates a new account after consent and credential validation
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*storage.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, storage.NewValidation("username", "username is required")
	}
	if len(req.Password) < MinPasswordLength {
		return nil, storage.NewValidation("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if req.Age < storage.MinimumAge {
		return nil, storage.NewValidation("age", fmt.Sprintf("you must be at least %d years old to register", storage.MinimumAge))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &storage.User{
		Username:        strings.TrimSpace(req.Username),
		Email:           strings.TrimSpace(req.Email),
		PasswordHash:    string(hash),
		Age:             req.Age,
		CanBeContacted:  req.CanBeContacted,
		CanDataBeShared: req.CanDataBeShared,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(user.ID, audit.ActionUserRegister, "user", strconv.FormatInt(user.ID, 10), nil))
	return user, nil
}

// Authenticate checks a username/password pair and returns the account.
// Unknown usernames and wrong passwords are indistinguishable to callers.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.record(ctx, audit.Denied(user.ID, audit.ActionLoginFailed, "user", strconv.FormatInt(user.ID, 10), nil, "wrong password"))
		return nil, ErrInvalidCredentials
	}

	s.record(ctx, audit.Allowed(user.ID, audit.ActionLogin, "user", strconv.FormatInt(user.ID, 10), nil))
	return user, nil
}

// Get returns one account. Visible to any authenticated user.
func (s *Service) Get(ctx context.Context, id int64) (*storage.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns all accounts. Visible to any authenticated user.
func (s *Service) List(ctx context.Context) ([]*storage.User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateRequest carries the mutable profile fields. Nil pointers leave the
// current value unchanged.
type UpdateRequest struct {
	Email           *string `json:"email,omitempty"`
	Password        *string `json:"password,omitempty"`
	Age             *int    `json:"age,omitempty"`
	CanBeContacted  *bool   `json:"can_be_contacted,omitempty"`
	CanDataBeShared *bool   `json:"can_data_be_shared,omitempty"`
}

// Update modifies an account. Only the account owner may do so.
func (s *Service) Update(ctx context.Context, actor *storage.User, id int64, req UpdateRequest) (*storage.User, error) {
	if actor.ID != id {
		return nil, &storage.ForbiddenError{Reason: "only the account owner may update the account"}
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Password != nil {
		if len(*req.Password) < MinPasswordLength {
			return nil, storage.NewValidation("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if req.Age != nil {
		if *req.Age < storage.MinimumAge {
			return nil, storage.NewValidation("age", fmt.Sprintf("you must be at least %d years old", storage.MinimumAge))
		}
		user.Age = *req.Age
	}
	if req.CanBeContacted != nil {
		user.CanBeContacted = *req.CanBeContacted
	}
	if req.CanDataBeShared != nil {
		user.CanDataBeShared = *req.CanDataBeShared
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionUserUpdate, "user", strconv.FormatInt(id, 10), nil))
	return user, nil
}

// Delete removes an account along with everything it authored. Only the
// account owner may do so (right to erasure).
func (s *Service) Delete(ctx context.Context, actor *storage.User, id int64) error {
	if actor.ID != id {
		return &storage.ForbiddenError{Reason: "only the account owner may delete the account"}
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionUserDelete, "user", strconv.FormatInt(id, 10), nil))
	return nil
}

func (s *Service) record(ctx context.Context, entry *audit.Entry) {
	if err := s.recorder.Record(ctx, entry); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit entry")
	}
}
