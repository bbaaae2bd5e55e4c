package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"issuecompass/internal/model"
	"issuecompass/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrUserNotFound      = errors.New("user not found")
)

type UserStore interface {
	Create(user *model.User) error
	GetByUsername(username string) (*model.User, error)
	GetByID(id uint) (*model.User, error)
	UpdateLanguage(id uint, language string) error
}

type AuthService struct {
	users         UserStore
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username string
	Password string
	Language string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(users UserStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	language := strings.ToLower(strings.TrimSpace(input.Language))
	if language == "" {
		language = "en"
	}

	if username == "" || len(username) > 64 || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Language:     language,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return s.issue(user)
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateLanguage stores the account's preferred answer language, used when a
// query does not name one.
func (s *AuthService) UpdateLanguage(id uint, language string) (*model.User, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" || len(language) > 16 {
		return nil, ErrInvalidInput
	}
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateLanguage(id, language); err != nil {
		return nil, err
	}
	user.Language = language
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
