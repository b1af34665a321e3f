package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("invalid input")
)

type Service interface {
	Register(ctx context.Context, username, password, role string) (*User, error)
	Authenticate(ctx context.Context, username, password, role string) (*User, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword, confirmPassword string) error
	Profile(ctx context.Context, username string) (*Profile, error)
}

type service struct {
	repo Repository
	cost int
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		cost: bcrypt.DefaultCost,
	}
}

// NewServiceWithCost is NewService with a custom bcrypt cost; tests use bcrypt.MinCost.
func NewServiceWithCost(repo Repository, cost int) Service {
	return &service{
		repo: repo,
		cost: cost,
	}
}

// Normalize lower-cases and trims a username or role.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validRole(role string) bool {
	return role == RoleStudent || role == RoleFaculty
}

func (s *service) Register(ctx context.Context, username, password, role string) (*User, error) {
	username = Normalize(username)
	role = Normalize(role)
	password = strings.TrimSpace(password)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: role must be %q or %q", ErrValidation, RoleStudent, RoleFaculty)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username: username,
		Password: string(hash),
		Role:     role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate matches username, password and role together; any mismatch is ErrInvalidCredentials.
func (s *service) Authenticate(ctx context.Context, username, password, role string) (*User, error) {
	username = Normalize(username)
	role = Normalize(role)
	password = strings.TrimSpace(password)

	if username == "" || password == "" || role == "" {
		return nil, fmt.Errorf("%w: all fields are required", ErrValidation)
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Role != role {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *service) ChangePassword(ctx context.Context, username, oldPassword, newPassword, confirmPassword string) error {
	oldPassword = strings.TrimSpace(oldPassword)
	newPassword = strings.TrimSpace(newPassword)
	confirmPassword = strings.TrimSpace(confirmPassword)

	if oldPassword == "" || newPassword == "" || confirmPassword == "" {
		return fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if newPassword != confirmPassword {
		return fmt.Errorf("%w: new passwords do not match", ErrValidation)
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, user.Username, string(hash))
}

// hash reports passwords bcrypt cannot take (over 72 bytes) as ErrValidation.
func (s *service) hash(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
	}
	return hash, err
}

func (s *service) Profile(ctx context.Context, username string) (*Profile, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Name:     capitalize(user.Username),
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
