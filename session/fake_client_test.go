package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
)

var errBoom = errors.New("boom")

// fakeClient is an in-memory AuthClient. Zero values succeed with the example
// session: token "T1", one hour, profile a@b.com / A.
type fakeClient struct {
	mu sync.Mutex

	loginToken *authapi.LoginToken
	profile    *authapi.UserProfile
	stored     *authapi.StoredSession
	remaining  *time.Duration

	signupErr, loginErr, getUserErr, nicknameErr, passwordErr, logoutErr, retrieveErr, computeErr error

	// loginGate, getUserGate and passwordGate, when set, block the matching
	// call until they are closed
	loginGate    chan struct{}
	getUserGate  chan struct{}
	passwordGate chan struct{}

	logoutTokens []string
	calls        map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		loginToken: &authapi.LoginToken{GrantType: authapi.GrantTypeBearer, AccessToken: "T1", TokenExpiresIn: 3600000},
		profile:    &authapi.UserProfile{Email: "a@b.com", Nickname: "A"},
		calls:      map[string]int{},
	}
}

func (f *fakeClient) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeClient) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) loggedOut() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.logoutTokens...)
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeClient) Signup(_ context.Context, email, _, nickname string) (*authapi.UserRecord, error) {
	f.record("signup")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &authapi.UserRecord{ID: "user-1", Email: email, Nickname: nickname}, nil
}

func (f *fakeClient) wait(ctx context.Context, gate func(f *fakeClient) chan struct{}) error {
	f.mu.Lock()
	g := gate(f)
	f.mu.Unlock()
	if g == nil {
		return nil
	}
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeClient) Login(ctx context.Context, _, _ string) (*authapi.LoginToken, error) {
	f.record("login")
	if err := f.wait(ctx, func(f *fakeClient) chan struct{} { return f.loginGate }); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	lt := *f.loginToken
	return &lt, nil
}

func (f *fakeClient) Logout(_ context.Context, token string) error {
	f.record("logout")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutTokens = append(f.logoutTokens, token)
	f.stored = nil
	return f.logoutErr
}

func (f *fakeClient) GetUser(ctx context.Context, _ string) (*authapi.UserProfile, error) {
	f.record("get_user")
	if err := f.wait(ctx, func(f *fakeClient) chan struct{} { return f.getUserGate }); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeClient) ChangeNickname(_ context.Context, nickname, _ string) (*authapi.UserProfile, error) {
	f.record("change_nickname")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nicknameErr != nil {
		return nil, f.nicknameErr
	}
	f.profile = &authapi.UserProfile{Email: f.profile.Email, Nickname: nickname}
	p := *f.profile
	return &p, nil
}

func (f *fakeClient) ChangePassword(ctx context.Context, _, _, _ string) error {
	f.record("change_password")
	if err := f.wait(ctx, func(f *fakeClient) chan struct{} { return f.passwordGate }); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwordErr
}

func (f *fakeClient) RetrieveStoredToken(_ context.Context) (*authapi.StoredSession, error) {
	f.record("retrieve")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	if f.stored == nil {
		return nil, nil
	}
	s := *f.stored
	return &s, nil
}

func (f *fakeClient) ComputeRemainingDuration(_ context.Context, token string, expiresIn int64) (time.Duration, error) {
	f.record("compute")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.computeErr != nil {
		return 0, f.computeErr
	}
	d := time.Duration(expiresIn) * time.Millisecond
	if f.remaining != nil {
		d = *f.remaining
	}
	f.stored = &authapi.StoredSession{Token: token, Duration: d}
	return d, nil
}
