// Package authapi holds the JSON wire schema shared by the identity service and
// its clients, together with the validation both sides apply to it.
package authapi

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	// GrantTypeBearer is the only grant type the identity service issues.
	GrantTypeBearer = "bearer"

	// MaxNicknameLength is the longest nickname accepted, in runes.
	MaxNicknameLength = 32

	// MaxTokenExpiresIn is the longest lifetime a client accepts, in milliseconds (one year).
	// Larger values would overflow time.Duration.
	MaxTokenExpiresIn = int64(365 * 24 * time.Hour / time.Millisecond)
)

// LoginToken is the body returned by a successful login.
type LoginToken struct {
	// GrantType tells the client how to present the token.
	// Example: "bearer"
	GrantType string `json:"grantType"`

	// AccessToken is the credential sent as "Authorization: Bearer <token>".
	AccessToken string `json:"accessToken"`

	// TokenExpiresIn is the granted lifetime of AccessToken in milliseconds.
	// Example: 3600000 (one hour)
	TokenExpiresIn int64 `json:"tokenExpiresIn"`
}

// Validate rejects tokens that cannot produce a usable session.
func (t LoginToken) Validate() error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return fmt.Errorf("login token: access token is empty")
	}
	if t.GrantType != "" && !strings.EqualFold(t.GrantType, GrantTypeBearer) {
		return fmt.Errorf("login token: unsupported grant type %q", t.GrantType)
	}
	if t.TokenExpiresIn <= 0 {
		return fmt.Errorf("login token: non-positive lifetime %d", t.TokenExpiresIn)
	}
	if t.TokenExpiresIn > MaxTokenExpiresIn {
		return fmt.Errorf("login token: lifetime %d exceeds %d", t.TokenExpiresIn, MaxTokenExpiresIn)
	}
	return nil
}

// Lifetime converts TokenExpiresIn to a duration, capped at MaxTokenExpiresIn.
func (t LoginToken) Lifetime() time.Duration {
	return time.Duration(min(t.TokenExpiresIn, MaxTokenExpiresIn)) * time.Millisecond
}

// UserProfile is the public view of the signed-in user.
type UserProfile struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

func (p UserProfile) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("user profile: email is empty")
	}
	return nil
}

// UserRecord is returned by signup.
type UserRecord struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

func (r UserRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("user record: id is empty")
	}
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("user record %s: email is empty", r.ID)
	}
	return nil
}

// StoredSession is a previously persisted token and the lifetime it has left.
type StoredSession struct {
	Token    string
	Duration time.Duration
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

func (r SignupRequest) Validate() error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return ValidateNickname(r.Nickname)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return fmt.Errorf("email and password are required")
	}
	return nil
}

type ChangeNicknameRequest struct {
	Nickname string `json:"nickname"`
}

func (r ChangeNicknameRequest) Validate() error {
	return ValidateNickname(r.Nickname)
}

type ChangePasswordRequest struct {
	ExPassword  string `json:"exPassword"`
	NewPassword string `json:"newPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	if r.ExPassword == "" || r.NewPassword == "" {
		return fmt.Errorf("current and new password are required")
	}
	return nil
}

// ErrorResponse is the body of every non-2xx response from the identity service.
type ErrorResponse struct {
	Error string `json:"error"`
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email %q", email)
	}
	return nil
}

func ValidateNickname(nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return fmt.Errorf("nickname is required")
	}
	if len([]rune(nickname)) > MaxNicknameLength {
		return fmt.Errorf("nickname must be at most %d characters", MaxNicknameLength)
	}
	return nil
}
