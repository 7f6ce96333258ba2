package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/Kyz7/hcg-auth/internal/models"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	MinPasswordLength = 6
	// MaxPasswordBytes is the longest input bcrypt will hash.
	MaxPasswordBytes = 72
)

var ErrInvalidInput = errors.New("invalid user input")

type PasswordHasher interface {
	Hash(password string) (string, error)
}

// NewUser is the input for provisioning an account.
type NewUser struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     string
	Inactive bool
}

// Validate returns field -> message for every problem found.
func (n NewUser) Validate() map[string]string {
	problems := map[string]string{}
	if strings.TrimSpace(n.Username) == "" {
		problems["username"] = "username is required"
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(n.Email)); err != nil {
		problems["email"] = "a valid email is required"
	}
	switch {
	case utf8.RuneCountInString(n.Password) < MinPasswordLength:
		problems["password"] = "password must be at least 6 characters"
	case len(n.Password) > MaxPasswordBytes:
		problems["password"] = "password must be at most 72 bytes"
	}
	switch n.Role {
	case "", RoleAdmin, RoleUser:
	default:
		problems["role"] = "role must be admin or user"
	}
	return problems
}

// Service provisions accounts outside the login and reset flows.
type Service struct {
	store  *Store
	hasher PasswordHasher
}

func NewService(store *Store, hasher PasswordHasher) *Service {
	return &Service{store: store, hasher: hasher}
}

func (s *Service) Provision(ctx context.Context, in NewUser) (*models.User, error) {
	if problems := in.Validate(); len(problems) > 0 {
		return nil, oops.Code("VALIDATION_ERROR").With("fields", problems).Wrap(ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").With("operation", "Hash").Wrap(err)
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}

	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         role,
		IsActive:     !in.Inactive,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.store.List(ctx)
}

func (s *Service) SetActive(ctx context.Context, id uint, active bool) error {
	return s.store.SetActive(ctx, id, active)
}
