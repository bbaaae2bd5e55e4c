package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuecompass/internal/model"
	"issuecompass/internal/pkg/jwtutil"
)

type fakeUserStore struct {
	users     []*model.User
	createErr error
}

func (f *fakeUserStore) Create(user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = uint(len(f.users) + 1)
	f.users = append(f.users, user)
	return nil
}

func (f *fakeUserStore) GetByUsername(username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) GetByID(id uint) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) UpdateLanguage(id uint, language string) error {
	for _, u := range f.users {
		if u.ID == id {
			u.Language = language
			return nil
		}
	}
	return errors.New("no rows updated")
}

func TestRegisterAndLogin(t *testing.T) {
	store := &fakeUserStore{}
	svc := NewAuthService(store, "secret", time.Hour)

	result, err := svc.Register(RegisterInput{Username: " ada ", Password: "password123", Language: "DE"})
	require.NoError(t, err)
	assert.Equal(t, "ada", result.User.Username)
	assert.Equal(t, "de", result.User.Language)
	assert.NotEqual(t, "password123", result.User.PasswordHash)

	claims, err := jwtutil.ParseToken("secret", result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)

	login, err := svc.Login(LoginInput{Username: "ada", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)

	user, err := svc.GetUserByID(result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
}

func TestUpdateLanguage(t *testing.T) {
	store := &fakeUserStore{}
	svc := NewAuthService(store, "secret", time.Hour)
	result, err := svc.Register(RegisterInput{Username: "ada", Password: "password123"})
	require.NoError(t, err)

	user, err := svc.UpdateLanguage(result.User.ID, " FR ")
	require.NoError(t, err)
	assert.Equal(t, "fr", user.Language)
	assert.Equal(t, "fr", store.users[0].Language)

	_, err = svc.UpdateLanguage(result.User.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpdateLanguage(99, "fr")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegisterDefaultsLanguage(t *testing.T) {
	svc := NewAuthService(&fakeUserStore{}, "secret", time.Hour)
	result, err := svc.Register(RegisterInput{Username: "ada", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "en", result.User.Language)
}

func TestAuthErrors(t *testing.T) {
	store := &fakeUserStore{}
	svc := NewAuthService(store, "secret", time.Hour)
	_, err := svc.Register(RegisterInput{Username: "ada", Password: "password123"})
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"short password", func() error {
			_, err := svc.Register(RegisterInput{Username: "bob", Password: "short"})
			return err
		}, ErrInvalidInput},
		{"duplicate username", func() error {
			_, err := svc.Register(RegisterInput{Username: "ada", Password: "password123"})
			return err
		}, ErrUsernameExists},
		{"empty login", func() error {
			_, err := svc.Login(LoginInput{})
			return err
		}, ErrInvalidInput},
		{"unknown user", func() error {
			_, err := svc.Login(LoginInput{Username: "nobody", Password: "password123"})
			return err
		}, ErrInvalidCredential},
		{"wrong password", func() error {
			_, err := svc.Login(LoginInput{Username: "ada", Password: "password124"})
			return err
		}, ErrInvalidCredential},
		{"missing user id", func() error {
			_, err := svc.GetUserByID(42)
			return err
		}, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}
}

func TestRegisterPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("insert failed")
	svc := NewAuthService(&fakeUserStore{createErr: storeErr}, "secret", time.Hour)
	_, err := svc.Register(RegisterInput{Username: "ada", Password: "password123"})
	assert.ErrorIs(t, err, storeErr)
}
