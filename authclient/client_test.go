package authclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/tokenstore/filestore"
	"github.com/jrsteele09/go-auth-session/tokenstore/memstore"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testEmail    = "a@b.com"
	testPassword = "Password123"
)

type fixture struct {
	ts     *httptest.Server
	store  *memstore.MemStore
	client *authclient.Client
}

func setup(t *testing.T, options ...authclient.Option) *fixture {
	t.Helper()
	signer, err := token.NewHMACSigner(testSecret)
	require.NoError(t, err)

	s, err := server.New(config.New(), fakeuserrepo.NewFakeUserRepo(),
		token.New(signer, token.WithTokenExpiry(time.Hour)),
		server.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	store := memstore.New()
	options = append([]authclient.Option{
		authclient.WithHTTPClient(ts.Client()),
		authclient.WithLogger(zerolog.Nop()),
	}, options...)
	client, err := authclient.New(ts.URL, store, options...)
	require.NoError(t, err)
	return &fixture{ts: ts, store: store, client: client}
}

func (f *fixture) login(t *testing.T) *authapi.LoginToken {
	t.Helper()
	ctx := context.Background()
	_, err := f.client.Signup(ctx, testEmail, testPassword, "A")
	require.NoError(t, err)
	lt, err := f.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	return lt
}

func TestNew_Validation(t *testing.T) {
	_, err := authclient.New("", memstore.New())
	require.Error(t, err)
	_, err = authclient.New("http://localhost", nil)
	require.Error(t, err)
}

func TestClient_Flow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	record, err := f.client.Signup(ctx, testEmail, testPassword, "A")
	require.NoError(t, err)
	require.Equal(t, testEmail, record.Email)

	lt, err := f.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, authapi.GrantTypeBearer, lt.GrantType)
	require.Equal(t, time.Hour.Milliseconds(), lt.TokenExpiresIn)

	profile, err := f.client.GetUser(ctx, lt.AccessToken)
	require.NoError(t, err)
	require.Equal(t, authapi.UserProfile{Email: testEmail, Nickname: "A"}, *profile)

	profile, err = f.client.ChangeNickname(ctx, "Bee", lt.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "Bee", profile.Nickname)

	require.NoError(t, f.client.Logout(ctx, lt.AccessToken))
	_, err = f.client.GetUser(ctx, lt.AccessToken)
	require.ErrorIs(t, err, authapi.ErrUnauthorized)
}

func TestClient_ErrorMapping(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lt := f.login(t)

	t.Run("signup conflict", func(t *testing.T) {
		_, err := f.client.Signup(ctx, testEmail, testPassword, "A")
		require.ErrorIs(t, err, authapi.ErrConflict)

		var clientErr *authclient.Error
		require.ErrorAs(t, err, &clientErr)
		require.Equal(t, http.StatusConflict, clientErr.Status)
		require.Equal(t, "Signup", clientErr.Op)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := f.client.Signup(ctx, "new@b.com", "weak", "N")
		require.ErrorIs(t, err, authapi.ErrBadRequest)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := f.client.Login(ctx, testEmail, "Wrong12345")
		require.ErrorIs(t, err, authapi.ErrInvalidCredentials)
	})

	t.Run("no token", func(t *testing.T) {
		_, err := f.client.GetUser(ctx, "")
		require.ErrorIs(t, err, authapi.ErrUnauthorized)
	})

	t.Run("wrong old password", func(t *testing.T) {
		err := f.client.ChangePassword(ctx, "Wrong12345", "NewPassword1", lt.AccessToken)
		require.ErrorIs(t, err, authapi.ErrInvalidCredentials)
	})

	t.Run("password change revokes token", func(t *testing.T) {
		require.NoError(t, f.client.ChangePassword(ctx, testPassword, "NewPassword1", lt.AccessToken))
		_, err := f.client.GetUser(ctx, lt.AccessToken)
		require.ErrorIs(t, err, authapi.ErrUnauthorized)
	})
}

func TestClient_InvalidResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case authapi.RouteLogin:
			_, _ = w.Write([]byte(`{"grantType":"bearer","accessToken":"","tokenExpiresIn":1000}`))
		case authapi.RouteMe:
			_, _ = w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(ts.Close)

	client, err := authclient.New(ts.URL, memstore.New(), authclient.WithHTTPClient(ts.Client()), authclient.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Login(ctx, testEmail, testPassword)
	require.ErrorIs(t, err, authapi.ErrInvalidResponse)

	_, err = client.GetUser(ctx, "T1")
	require.ErrorIs(t, err, authapi.ErrInvalidResponse)

	err = client.ChangePassword(ctx, "a", "b", "T1")
	require.ErrorIs(t, err, authapi.ErrUnexpectedStatus)
}

func TestClient_SendsBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(authapi.HeaderRequestID)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"a@b.com","nickname":"A"}`))
	}))
	t.Cleanup(ts.Close)

	client, err := authclient.New(ts.URL, memstore.New(), authclient.WithHTTPClient(ts.Client()), authclient.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = client.GetUser(context.Background(), "T1")
	require.NoError(t, err)
	require.Equal(t, "Bearer T1", gotAuth)
	require.NotEmpty(t, gotRequestID)
}

func TestComputeRemainingDuration(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	f := setup(t, authclient.WithNowFunc(func() time.Time { return now }))
	ctx := context.Background()

	t.Run("opaque token", func(t *testing.T) {
		d, err := f.client.ComputeRemainingDuration(ctx, "T1", 3600000)
		require.NoError(t, err)
		require.Equal(t, time.Hour, d)

		record, err := f.store.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "T1", record.Token)
		require.True(t, now.Add(time.Hour).Equal(record.ExpiresAt))
	})

	t.Run("earlier jwt exp wins", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": now.Add(10 * time.Minute).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		d, err := f.client.ComputeRemainingDuration(ctx, raw, time.Hour.Milliseconds())
		require.NoError(t, err)
		require.Equal(t, 10*time.Minute, d)
	})

	t.Run("huge lifetime is capped", func(t *testing.T) {
		d, err := f.client.ComputeRemainingDuration(ctx, "T3", 9_300_000_000_000)
		require.NoError(t, err)
		require.Equal(t, time.Duration(authapi.MaxTokenExpiresIn)*time.Millisecond, d)
	})

	t.Run("already expired clears store", func(t *testing.T) {
		d, err := f.client.ComputeRemainingDuration(ctx, "T2", 0)
		require.NoError(t, err)
		require.LessOrEqual(t, d, time.Duration(0))

		_, err = f.store.Load(ctx)
		require.ErrorIs(t, err, tokenstore.ErrNotFound)
	})
}

func TestRetrieveStoredToken(t *testing.T) {
	now := time.Now()
	f := setup(t,
		authclient.WithNowFunc(func() time.Time { return now }),
		authclient.WithMinStoredLifetime(time.Second),
	)
	ctx := context.Background()

	stored, err := f.client.RetrieveStoredToken(ctx)
	require.NoError(t, err)
	require.Nil(t, stored)

	require.NoError(t, f.store.Save(ctx, tokenstore.Record{Token: "T1", ExpiresAt: now.Add(time.Minute)}))
	stored, err = f.client.RetrieveStoredToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "T1", stored.Token)
	require.Equal(t, time.Minute, stored.Duration)

	require.NoError(t, f.store.Save(ctx, tokenstore.Record{Token: "T1", ExpiresAt: now.Add(500 * time.Millisecond)}))
	stored, err = f.client.RetrieveStoredToken(ctx)
	require.NoError(t, err)
	require.Nil(t, stored)

	_, err = f.store.Load(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNotFound, "near-expired record is cleared")
}

func TestRetrieveStoredToken_CorruptFileIsCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store, err := filestore.New(path)
	require.NoError(t, err)

	client, err := authclient.New("http://localhost", store, authclient.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	stored, err := client.RetrieveStoredToken(ctx)
	require.NoError(t, err)
	require.Nil(t, stored)

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	stored, err = client.RetrieveStoredToken(ctx)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestLogout_ClearsStoreWithoutToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, tokenstore.Record{Token: "T1", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, f.client.Logout(ctx, ""))
	_, err := f.store.Load(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}
