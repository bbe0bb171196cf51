// Package session holds the client side authentication state: the bearer token,
// when it expires, and the signed-in user's profile. A Manager drives an
// AuthClient and logs the session out when its granted lifetime runs out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultLogoutTimeout = 10 * time.Second

var (
	// ErrNotLoggedIn is returned by operations that need a token when there is none.
	ErrNotLoggedIn = errors.New("session: not logged in")

	// ErrSuperseded is returned when the session was logged out, or replaced,
	// while the operation was in flight. Its result has been discarded.
	ErrSuperseded = errors.New("session: superseded while in flight")

	// ErrClosed is returned by operations started on, or finishing on, a closed Manager.
	ErrClosed = errors.New("session: manager closed")
)

// AuthClient is the network side of a session.
type AuthClient interface {
	Signup(ctx context.Context, email, password, nickname string) (*authapi.UserRecord, error)
	Login(ctx context.Context, email, password string) (*authapi.LoginToken, error)
	Logout(ctx context.Context, token string) error
	GetUser(ctx context.Context, token string) (*authapi.UserProfile, error)
	ChangeNickname(ctx context.Context, nickname, token string) (*authapi.UserProfile, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword, token string) error

	// RetrieveStoredToken returns nil, nil when no usable session was persisted.
	RetrieveStoredToken(ctx context.Context) (*authapi.StoredSession, error)

	// ComputeRemainingDuration records the token and returns how long it stays valid.
	// expiresIn is in milliseconds.
	ComputeRemainingDuration(ctx context.Context, token string, expiresIn int64) (time.Duration, error)
}

// State is a snapshot of a Manager.
type State struct {
	Token        string
	ExpiresAt    time.Time
	UserProfile  *authapi.UserProfile
	IsSuccess    bool
	IsGetSuccess bool
}

func (s State) IsLoggedIn() bool {
	return s.Token != ""
}

type Manager struct {
	id            string
	client        AuthClient
	logger        zerolog.Logger
	nowFunc       func() time.Time
	logoutTimeout time.Duration

	mu           sync.Mutex
	token        string
	expiresAt    time.Time
	profile      *authapi.UserProfile
	isSuccess    bool
	isGetSuccess bool

	// epoch advances on every logout. Results of calls begun in an earlier epoch are dropped.
	epoch uint64

	timer    *time.Timer
	timerGen uint64

	subscribers map[uint64]func(State)
	nextSubID   uint64
	closed      bool
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogoutTimeout bounds the remote logout made when the session expires on its own.
func WithLogoutTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.logoutTimeout = d
	}
}

func New(client AuthClient, options ...Option) (*Manager, error) {
	if client == nil {
		return nil, errors.New("session: auth client is required")
	}
	m := &Manager{
		id:            uuid.NewString(),
		client:        client,
		logger:        log.Logger,
		nowFunc:       time.Now,
		logoutTimeout: defaultLogoutTimeout,
		subscribers:   map[uint64]func(State){},
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With().Str("session", m.id).Logger()
	return m, nil
}

// Signup registers an account. It does not sign in.
func (m *Manager) Signup(ctx context.Context, email, password, nickname string) error {
	if err := m.begin(func() { m.isSuccess = false }); err != nil {
		return fmt.Errorf("session: signup: %w", err)
	}

	if _, err := m.client.Signup(ctx, email, password, nickname); err != nil {
		m.logger.Warn().Err(err).Str("op", "signup").Msg("signup failed")
		return fmt.Errorf("session: signup: %w", err)
	}

	m.update(func() { m.isSuccess = true })
	return nil
}

// Login signs in, arms the expiration timer and loads the profile. A failed
// profile fetch is logged and does not fail the login.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	var epoch uint64
	if err := m.begin(func() {
		m.isSuccess = false
		epoch = m.epoch
	}); err != nil {
		return fmt.Errorf("session: login: %w", err)
	}

	loginToken, err := m.client.Login(ctx, email, password)
	if err != nil {
		m.logger.Warn().Err(err).Str("op", "login").Msg("login failed")
		return fmt.Errorf("session: login: %w", err)
	}

	remaining, err := m.client.ComputeRemainingDuration(ctx, loginToken.AccessToken, loginToken.TokenExpiresIn)
	if err != nil {
		remaining = loginToken.Lifetime()
		m.logger.Warn().Err(err).Str("op", "login").Msg("could not persist token, session will not survive a restart")
	}

	token := loginToken.AccessToken
	adopted, closed := false, false
	m.update(func() {
		if m.closed {
			closed = true
			return
		}
		if m.epoch != epoch {
			return
		}
		adopted = true
		m.token = token
		m.expiresAt = m.nowFunc().Add(remaining)
		m.profile = nil
		m.isGetSuccess = false
		m.armLocked(remaining)
	})
	if !adopted {
		m.logger.Info().Str("op", "login").Msg("logged out while logging in, discarding token")
		m.remoteLogout(ctx, token)
		if closed {
			return fmt.Errorf("session: login: %w", ErrClosed)
		}
		return fmt.Errorf("session: login: %w", ErrSuperseded)
	}
	m.logger.Info().Str("op", "login").Dur("expires_in", remaining).Msg("logged in")

	profile, err := m.client.GetUser(ctx, token)
	if err != nil {
		m.logger.Warn().Err(err).Str("op", "login").Msg("profile fetch after login failed")
	}
	current := false
	m.update(func() {
		if m.token != token {
			return
		}
		current = true
		if err == nil {
			m.profile = profile
			m.isGetSuccess = true
		}
		m.isSuccess = true
	})
	if !current {
		m.logger.Info().Str("op", "login").Msg("logged out while loading the profile")
		return fmt.Errorf("session: login: %w", ErrSuperseded)
	}
	return nil
}

// Logout ends the session locally and tells the identity service. Remote
// failures are logged, never returned. Logging out without a session is a no-op
// apart from clearing any persisted token.
func (m *Manager) Logout(ctx context.Context) {
	var token string
	m.update(func() {
		token = m.clearLocked()
	})
	m.remoteLogout(ctx, token)
}

// GetUser refreshes the profile for the current token.
func (m *Manager) GetUser(ctx context.Context) error {
	var token string
	if err := m.begin(func() {
		m.isGetSuccess = false
		token = m.token
	}); err != nil {
		return fmt.Errorf("session: get user: %w", err)
	}
	if token == "" {
		return fmt.Errorf("session: get user: %w", ErrNotLoggedIn)
	}

	profile, err := m.client.GetUser(ctx, token)
	if err != nil {
		m.logger.Warn().Err(err).Str("op", "get_user").Msg("profile fetch failed")
		return fmt.Errorf("session: get user: %w", err)
	}

	applied := false
	m.update(func() {
		if m.token != token {
			return
		}
		applied = true
		m.profile = profile
		m.isGetSuccess = true
	})
	if !applied {
		return fmt.Errorf("session: get user: %w", ErrSuperseded)
	}
	return nil
}

// ChangeNickname replaces the profile with the one the identity service returns.
func (m *Manager) ChangeNickname(ctx context.Context, nickname string) error {
	var token string
	if err := m.begin(func() {
		m.isSuccess = false
		token = m.token
	}); err != nil {
		return fmt.Errorf("session: change nickname: %w", err)
	}
	if token == "" {
		return fmt.Errorf("session: change nickname: %w", ErrNotLoggedIn)
	}

	profile, err := m.client.ChangeNickname(ctx, nickname, token)
	if err != nil {
		m.logger.Warn().Err(err).Str("op", "change_nickname").Msg("nickname change failed")
		return fmt.Errorf("session: change nickname: %w", err)
	}

	applied := false
	m.update(func() {
		if m.token != token {
			return
		}
		applied = true
		m.profile = profile
		m.isSuccess = true
	})
	if !applied {
		return fmt.Errorf("session: change nickname: %w", ErrSuperseded)
	}
	return nil
}

// ChangePassword changes the password and then logs out, so the new password
// has to be used to sign in again. If the session it started on has been
// logged out or replaced by then, the current session is left alone.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	var (
		token string
		epoch uint64
	)
	if err := m.begin(func() {
		m.isSuccess = false
		token = m.token
		epoch = m.epoch
	}); err != nil {
		return fmt.Errorf("session: change password: %w", err)
	}
	if token == "" {
		return fmt.Errorf("session: change password: %w", ErrNotLoggedIn)
	}

	if err := m.client.ChangePassword(ctx, oldPassword, newPassword, token); err != nil {
		m.logger.Warn().Err(err).Str("op", "change_password").Msg("password change failed")
		return fmt.Errorf("session: change password: %w", err)
	}

	applied := false
	m.update(func() {
		if m.epoch != epoch || m.token != token {
			return
		}
		applied = true
		m.isSuccess = true
	})
	if !applied {
		m.logger.Info().Str("op", "change_password").Msg("password changed after the session ended")
		return fmt.Errorf("session: change password: %w", ErrSuperseded)
	}
	m.logger.Info().Str("op", "change_password").Msg("password changed, logging out")
	m.Logout(ctx)
	return nil
}

// Restore adopts a persisted session, if there is one, and arms the timer for
// what is left of it. A non-positive remaining duration expires it right away.
func (m *Manager) Restore(ctx context.Context) error {
	var epoch uint64
	if err := m.begin(func() { epoch = m.epoch }); err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}

	stored, err := m.client.RetrieveStoredToken(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Str("op", "restore").Msg("reading stored session failed")
		return fmt.Errorf("session: restore: %w", err)
	}
	if stored == nil || stored.Token == "" {
		return nil
	}

	adopted, closed := false, false
	m.update(func() {
		if m.closed {
			closed = true
			return
		}
		if m.epoch != epoch {
			return
		}
		adopted = true
		m.token = stored.Token
		m.expiresAt = m.nowFunc().Add(stored.Duration)
		m.profile = nil
		m.isGetSuccess = false
		m.armLocked(stored.Duration)
	})
	if closed {
		return fmt.Errorf("session: restore: %w", ErrClosed)
	}
	if !adopted {
		return fmt.Errorf("session: restore: %w", ErrSuperseded)
	}
	m.logger.Info().Str("op", "restore").Dur("expires_in", stored.Duration).Msg("restored stored session")
	return nil
}

func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// UserProfile returns a copy of the profile, or nil if none has been loaded.
func (m *Manager) UserProfile() *authapi.UserProfile {
	return m.State().UserProfile
}

func (m *Manager) IsLoggedIn() bool {
	return m.Token() != ""
}

// IsSuccess reports whether the last signup, login, nickname or password operation succeeded.
func (m *Manager) IsSuccess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isSuccess
}

// IsGetSuccess reports whether the last profile fetch succeeded.
func (m *Manager) IsGetSuccess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isGetSuccess
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Subscribe registers fn to receive a snapshot after every state change. fn runs
// on the goroutine that made the change and must not block.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || fn == nil {
		return func() {}
	}
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
		})
	}
}

// Close disarms the expiration timer and drops all subscribers. The session
// state and any persisted token are left as they are. Logout still works on a
// closed Manager; every other operation returns ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.disarmLocked()
	m.subscribers = map[uint64]func(State){}
}

// begin is update for the first step of an operation. It refuses to run once
// the Manager is closed.
func (m *Manager) begin(fn func()) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.applyAndNotify(fn)
	return nil
}

func (m *Manager) update(fn func()) {
	m.mu.Lock()
	m.applyAndNotify(fn)
}

// applyAndNotify runs fn with m.mu held, releases it, then hands the new
// snapshot to every subscriber.
func (m *Manager) applyAndNotify(fn func()) {
	fn()
	state := m.stateLocked()
	subscribers := m.subscribersLocked()
	m.mu.Unlock()

	for _, sub := range subscribers {
		sub(state)
	}
}

func (m *Manager) stateLocked() State {
	return State{
		Token:        m.token,
		ExpiresAt:    m.expiresAt,
		UserProfile:  utils.Clone(m.profile),
		IsSuccess:    m.isSuccess,
		IsGetSuccess: m.isGetSuccess,
	}
}

func (m *Manager) subscribersLocked() []func(State) {
	ids := make([]uint64, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	subscribers := make([]func(State), 0, len(ids))
	for _, id := range ids {
		subscribers = append(subscribers, m.subscribers[id])
	}
	return subscribers
}

// clearLocked drops the session and returns the token it held.
func (m *Manager) clearLocked() string {
	token := m.token
	m.token = ""
	m.expiresAt = time.Time{}
	m.profile = nil
	m.isGetSuccess = false
	m.epoch++
	m.disarmLocked()
	return token
}

// armLocked replaces any pending expiration with one firing after d.
func (m *Manager) armLocked(d time.Duration) {
	m.disarmLocked()
	if m.closed {
		return
	}
	if d < 0 {
		d = 0
	}
	gen := m.timerGen
	m.timer = time.AfterFunc(d, func() { m.expire(gen) })
}

func (m *Manager) disarmLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// expire runs on the timer goroutine. A timer that was replaced or stopped
// after it had already fired finds a newer generation and does nothing.
func (m *Manager) expire(gen uint64) {
	var token string
	fired := false
	m.update(func() {
		if gen != m.timerGen || m.timer == nil {
			return
		}
		fired = true
		token = m.clearLocked()
	})
	if !fired {
		return
	}
	m.logger.Info().Str("op", "expire").Msg("session expired")

	ctx, cancel := context.WithTimeout(context.Background(), m.logoutTimeout)
	defer cancel()
	m.remoteLogout(ctx, token)
}

func (m *Manager) remoteLogout(ctx context.Context, token string) {
	if err := m.client.Logout(ctx, token); err != nil {
		m.logger.Warn().Err(err).Str("op", "logout").Msg("remote logout failed")
	}
}
