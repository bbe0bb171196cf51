package auth

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
)

// AccountService implements the identity operations behind the HTTP API:
// signup, login, logout, profile lookup, nickname and password changes.
type AccountService struct {
	users   users.UserRepo   // Repository for user data
	tokens  *token.Manager   // Issues and verifies access tokens
	nowTime func() time.Time // nowTime function (injectable for testing)
}

// AccountServiceOption defines a function type to modify the AccountService instance.
type AccountServiceOption func(*AccountService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AccountServiceOption {
	return func(as *AccountService) {
		as.nowTime = nowFunc
	}
}

// NewAccountService initializes a new AccountService with required dependencies.
func NewAccountService(userRepo users.UserRepo, tokens *token.Manager, options ...AccountServiceOption) (*AccountService, error) {
	if userRepo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewAccountService] users repo is required")
	}
	if tokens == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewAccountService] token manager is required")
	}

	as := &AccountService{
		users:   userRepo,
		tokens:  tokens,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(as)
	}
	return as, nil
}

// Signup registers a new user. The email must not already be registered.
func (as *AccountService) Signup(req authapi.SignupRequest) (*users.User, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Signup] %v", err)
	}
	if _, err := as.users.GetByEmail(req.Email); err == nil {
		return nil, errors.ErrUserExists
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return nil, errors.Wrapf(errors.ErrWeakPassword, "[Signup] %v", err)
	}

	user, err := users.NewUser(req.Email, req.Password, req.Nickname, as.nowTime())
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Signup] %v", err)
	}
	if err := as.users.Upsert(user); err != nil {
		return nil, errors.Wrapf(err, "[Signup] failed to store user")
	}
	return user, nil
}

// Login checks the credentials and issues an access token.
func (as *AccountService) Login(req authapi.LoginRequest) (*authapi.LoginToken, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Login] %v", err)
	}

	user, err := as.users.GetByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		// Same error as a bad password so callers cannot probe for registered emails
		return nil, errors.ErrInvalidCredentials
	}
	if !user.CheckPassword(req.Password) {
		return nil, errors.ErrInvalidCredentials
	}

	loginToken, err := as.tokens.CreateAccessToken(user)
	if err != nil {
		return nil, errors.Wrapf(err, "[Login] failed to create access token")
	}

	user.LastLogin = as.nowTime()
	user.LoggedIn = true
	if err := as.users.Upsert(user); err != nil {
		return nil, errors.Wrapf(err, "[Login] failed to update user")
	}
	return loginToken, nil
}

// Authenticate resolves a bearer token to its user.
func (as *AccountService) Authenticate(rawToken string) (*users.User, *token.Claims, error) {
	claims, err := as.tokens.Introspect(rawToken)
	if err != nil {
		return nil, nil, err
	}
	user, err := as.users.GetByID(claims.UserID)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.ErrInvalidToken, "[Authenticate] unknown subject %s", claims.UserID)
	}
	return user, claims, nil
}

// Logout revokes the token and marks the user as logged out.
func (as *AccountService) Logout(rawToken string) error {
	user, _, err := as.Authenticate(rawToken)
	if err != nil {
		return err
	}
	if err := as.tokens.RevokeAccessToken(rawToken); err != nil {
		return errors.Wrapf(err, "[Logout] failed to revoke token")
	}
	return as.users.SetLoggedIn(user.Email, false)
}

// ChangeNickname replaces the user's nickname and returns the updated user.
func (as *AccountService) ChangeNickname(user *users.User, req authapi.ChangeNicknameRequest) (*users.User, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[ChangeNickname] %v", err)
	}
	user.Nickname = strings.TrimSpace(req.Nickname)
	if err := as.users.Upsert(user); err != nil {
		return nil, errors.Wrapf(err, "[ChangeNickname] failed to store user")
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new one and revokes
// the token the change was made with, so the caller has to log in again.
func (as *AccountService) ChangePassword(user *users.User, rawToken string, req authapi.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "[ChangePassword] %v", err)
	}
	if !user.CheckPassword(req.ExPassword) {
		return errors.ErrInvalidCredentials
	}
	if err := users.ValidatePasswordStrength(req.NewPassword); err != nil {
		return errors.Wrapf(errors.ErrWeakPassword, "[ChangePassword] %v", err)
	}

	hash, err := users.HashPassword(req.NewPassword)
	if err != nil {
		return errors.Wrapf(err, "[ChangePassword] failed to hash password")
	}
	user.PasswordHash = hash
	user.LoggedIn = false
	if err := as.users.Upsert(user); err != nil {
		return errors.Wrapf(err, "[ChangePassword] failed to store user")
	}
	if err := as.tokens.RevokeAccessToken(rawToken); err != nil {
		return errors.Wrapf(err, "[ChangePassword] failed to revoke token")
	}
	return nil
}
