// Package authclient talks to the identity service over HTTP and keeps the
// issued token in a tokenstore.Store between runs.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout           = 15 * time.Second
	defaultMinStoredLifetime = time.Second
)

const (
	opSignup          = "Signup"
	opLogin           = "Login"
	opLogout          = "Logout"
	opGetUser         = "GetUser"
	opChangeNickname  = "ChangeNickname"
	opChangePassword  = "ChangePassword"
	opRetrieveStored  = "RetrieveStoredToken"
	opComputeDuration = "ComputeRemainingDuration"
)

type Client struct {
	baseURL           *url.URL
	httpClient        *http.Client
	store             tokenstore.Store
	logger            zerolog.Logger
	nowFunc           func() time.Time
	minStoredLifetime time.Duration
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// WithMinStoredLifetime sets how much lifetime a stored token needs left to be reused.
func WithMinStoredLifetime(d time.Duration) Option {
	return func(c *Client) {
		c.minStoredLifetime = d
	}
}

func New(baseURL string, store tokenstore.Store, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("authclient: baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("authclient: parse baseURL: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("authclient: token store is required")
	}

	c := &Client{
		baseURL:           parsed,
		httpClient:        &http.Client{Timeout: defaultTimeout},
		store:             store,
		logger:            log.Logger,
		nowFunc:           time.Now,
		minStoredLifetime: defaultMinStoredLifetime,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Client) Signup(ctx context.Context, email, password, nickname string) (*authapi.UserRecord, error) {
	payload := authapi.SignupRequest{Email: email, Password: password, Nickname: nickname}
	var record authapi.UserRecord
	if err := c.call(ctx, opSignup, http.MethodPost, authapi.RouteSignup, "", payload, http.StatusCreated, &record); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, invalidResponse(opSignup, http.StatusCreated, err)
	}
	return &record, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*authapi.LoginToken, error) {
	payload := authapi.LoginRequest{Email: email, Password: password}
	var loginToken authapi.LoginToken
	if err := c.call(ctx, opLogin, http.MethodPost, authapi.RouteLogin, "", payload, http.StatusOK, &loginToken); err != nil {
		return nil, err
	}
	if err := loginToken.Validate(); err != nil {
		return nil, invalidResponse(opLogin, http.StatusOK, err)
	}
	return &loginToken, nil
}

// Logout forgets the stored token and, when a token is given, revokes it remotely.
// Both steps are attempted; the errors are joined.
func (c *Client) Logout(ctx context.Context, token string) error {
	var errs []error
	if err := c.store.Clear(ctx); err != nil {
		errs = append(errs, wrapError(opLogout, fmt.Errorf("clear token store: %w", err)))
	}
	if token != "" {
		if err := c.call(ctx, opLogout, http.MethodPost, authapi.RouteLogout, token, nil, http.StatusNoContent, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) GetUser(ctx context.Context, token string) (*authapi.UserProfile, error) {
	var profile authapi.UserProfile
	if err := c.call(ctx, opGetUser, http.MethodGet, authapi.RouteMe, token, nil, http.StatusOK, &profile); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, invalidResponse(opGetUser, http.StatusOK, err)
	}
	return &profile, nil
}

func (c *Client) ChangeNickname(ctx context.Context, nickname, token string) (*authapi.UserProfile, error) {
	payload := authapi.ChangeNicknameRequest{Nickname: nickname}
	var profile authapi.UserProfile
	if err := c.call(ctx, opChangeNickname, http.MethodPost, authapi.RouteChangeNickname, token, payload, http.StatusOK, &profile); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, invalidResponse(opChangeNickname, http.StatusOK, err)
	}
	return &profile, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword, token string) error {
	payload := authapi.ChangePasswordRequest{ExPassword: oldPassword, NewPassword: newPassword}
	return c.call(ctx, opChangePassword, http.MethodPost, authapi.RouteChangePassword, token, payload, http.StatusNoContent, nil)
}

// RetrieveStoredToken returns the persisted session, or nil when there is none or
// it has too little lifetime left to be worth restoring. Such records are cleared.
func (c *Client) RetrieveStoredToken(ctx context.Context) (*authapi.StoredSession, error) {
	record, err := c.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, nil
	}
	if errors.Is(err, tokenstore.ErrCorrupt) {
		c.logger.Warn().Err(err).Str("op", opRetrieveStored).Msg("discarding corrupt stored session")
		if err := c.store.Clear(ctx); err != nil {
			return nil, wrapError(opRetrieveStored, err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(opRetrieveStored, err)
	}

	remaining := record.Remaining(c.nowFunc())
	if remaining <= c.minStoredLifetime {
		c.logger.Debug().Str("op", opRetrieveStored).Dur("remaining", remaining).Msg("discarding stale stored session")
		if err := c.store.Clear(ctx); err != nil {
			return nil, wrapError(opRetrieveStored, err)
		}
		return nil, nil
	}
	return &authapi.StoredSession{Token: record.Token, Duration: remaining}, nil
}

// ComputeRemainingDuration persists the token with its expiry and returns how long
// it stays valid. expiresIn is in milliseconds. If the token is a JWT whose exp
// claim comes earlier, the claim wins.
func (c *Client) ComputeRemainingDuration(ctx context.Context, token string, expiresIn int64) (time.Duration, error) {
	if expiresIn > authapi.MaxTokenExpiresIn {
		expiresIn = authapi.MaxTokenExpiresIn
	}
	now := c.nowFunc()
	expiresAt := now.Add(time.Duration(expiresIn) * time.Millisecond)
	if exp, ok := jwtExpiry(token); ok && exp.Before(expiresAt) {
		expiresAt = exp
	}

	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		if err := c.store.Clear(ctx); err != nil {
			return remaining, wrapError(opComputeDuration, err)
		}
		return remaining, nil
	}

	if err := c.store.Save(ctx, tokenstore.Record{Token: token, ExpiresAt: expiresAt}); err != nil {
		return remaining, wrapError(opComputeDuration, err)
	}
	return remaining, nil
}

// jwtExpiry reads the exp claim without verifying the signature. The server
// is the only party that can verify the token.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (c *Client) call(ctx context.Context, op, method, path, token string, payload any, wantStatus int, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return wrapError(op, fmt.Errorf("encode request: %w", err))
		}
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), &body)
	if err != nil {
		return wrapError(op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(authapi.HeaderRequestID, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.With().Str("op", op).Str("request_id", requestID).Logger()
	start := c.nowFunc()
	resp, err := c.clientFor(ctx, token).Do(req)
	if err != nil {
		logger.Debug().Err(err).Msg("request failed")
		return wrapError(op, err)
	}
	defer resp.Body.Close()
	logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", c.nowFunc().Sub(start)).Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if resp.StatusCode != wantStatus {
		return &Error{Op: op, Status: resp.StatusCode, Err: authapi.ErrUnexpectedStatus}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return invalidResponse(op, resp.StatusCode, err)
	}
	return nil
}

// clientFor returns an HTTP client that presents token as a bearer credential.
func (c *Client) clientFor(ctx context.Context, token string) *http.Client {
	if token == "" {
		return c.httpClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	authed.Timeout = c.httpClient.Timeout
	return authed
}
