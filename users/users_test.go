package users_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "Password123", ""},
		{"too short", "Pa1", "at least 8 characters"},
		{"no upper", "password123", "uppercase"},
		{"no lower", "PASSWORD123", "lowercase"},
		{"no number", "PasswordABC", "number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewUser(t *testing.T) {
	now := time.Now()
	u, err := users.NewUser(" a@b.com ", "Password123", " A ", now)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", u.Email)
	require.Equal(t, "A", u.Nickname)
	require.Equal(t, now, u.DateJoined)
	require.NotEqual(t, "Password123", u.PasswordHash)
	require.True(t, u.CheckPassword("Password123"))
	require.False(t, u.CheckPassword("Password124"))

	_, err = users.NewUser("a@b.com", "weak", "A", now)
	require.Error(t, err)
	_, err = users.NewUser("nope", "Password123", "A", now)
	require.Error(t, err)
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	u := &users.User{Email: "A@b.com", Nickname: "A"}
	require.NoError(t, repo.Upsert(u))
	require.NotEmpty(t, u.ID)

	byEmail, err := repo.GetByEmail("a@B.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	// Returned users are copies
	byEmail.Nickname = "changed"
	byID, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, "A", byID.Nickname)

	require.NoError(t, repo.SetLoggedIn("a@b.com", true))
	byID, err = repo.GetByID(u.ID)
	require.NoError(t, err)
	require.True(t, byID.LoggedIn)

	require.NoError(t, repo.Delete("a@b.com"))
	_, err = repo.GetByID(u.ID)
	require.ErrorIs(t, err, errors.ErrUserNotFound)
	require.ErrorIs(t, repo.Delete("a@b.com"), errors.ErrUserNotFound)
}
