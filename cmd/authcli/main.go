package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/tokenstore/filestore"
	"github.com/jrsteele09/go-auth-session/tokenstore/memstore"
	"github.com/jrsteele09/go-auth-session/tokenstore/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type command struct {
	usage string
	run   func(ctx context.Context, m *session.Manager, args []string, out io.Writer) error
}

var commands = map[string]command{
	"signup":   {usage: "signup -email E -password P -nickname N", run: signupCmd},
	"login":    {usage: "login -email E -password P", run: loginCmd},
	"logout":   {usage: "logout", run: logoutCmd},
	"whoami":   {usage: "whoami", run: whoamiCmd},
	"nickname": {usage: "nickname NAME", run: nicknameCmd},
	"passwd":   {usage: "passwd -old P -new P", run: passwdCmd},
	"status":   {usage: "status", run: statusCmd},
	"watch":    {usage: "watch", run: watchCmd},
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "authcli: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if path := os.Getenv(config.ConfigFileEnvVar); path != "" {
		if err := config.LoadFile(path); err != nil {
			return err
		}
	}
	if len(args) == 0 {
		return errors.New(usage())
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n%s", args[0], usage())
	}

	c := config.New()
	logger := logging.Configure(os.Stderr, c.GetLogLevel(), c.GetEnv())

	store, closeStore, err := newStore(c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := authclient.New(c.GetBaseURL(), store,
		authclient.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}),
		authclient.WithLogger(logger),
		authclient.WithMinStoredLifetime(c.GetMinStoredLifetime()),
	)
	if err != nil {
		return err
	}

	m, err := session.New(client, session.WithLogger(logger))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Restore(ctx); err != nil {
		return err
	}
	return cmd.run(session.NewContext(ctx, m), m, args[1:], out)
}

func usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: authcli <command> [flags]\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	return strings.TrimRight(b.String(), "\n")
}

func newStore(c config.ClientConfig, logger zerolog.Logger) (tokenstore.Store, func(), error) {
	switch c.GetTokenStore() {
	case config.TokenStoreFile:
		store, err := filestore.New(c.GetTokenFile())
		if err != nil {
			return nil, nil, err
		}
		logger.Debug().Str("path", store.Path()).Msg("using file token store")
		return store, func() {}, nil
	case config.TokenStoreMemory:
		return memstore.New(), func() {}, nil
	case config.TokenStoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		store, err := redisstore.New(rdb, c.GetRedisPrefix())
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		logger.Debug().Str("key", store.Key()).Msg("using redis token store")
		return store, func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown TOKEN_STORE %q (want %s, %s or %s)",
			c.GetTokenStore(), config.TokenStoreFile, config.TokenStoreRedis, config.TokenStoreMemory)
	}
}

func signupCmd(ctx context.Context, m *session.Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	nickname := fs.String("nickname", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := m.Signup(ctx, *email, *password, *nickname); err != nil {
		return err
	}
	fmt.Fprintf(out, "signed up %s\n", *email)
	return nil
}

func loginCmd(ctx context.Context, m *session.Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := m.Login(ctx, *email, *password); err != nil {
		return err
	}
	state := m.State()
	fmt.Fprintf(out, "logged in as %s until %s\n", utils.Value(state.UserProfile).Nickname, state.ExpiresAt.Format(time.RFC3339))
	return nil
}

func logoutCmd(ctx context.Context, m *session.Manager, _ []string, out io.Writer) error {
	m.Logout(ctx)
	fmt.Fprintln(out, "logged out")
	return nil
}

func whoamiCmd(ctx context.Context, m *session.Manager, _ []string, out io.Writer) error {
	if err := m.GetUser(ctx); err != nil {
		return err
	}
	profile := utils.Value(m.UserProfile())
	fmt.Fprintf(out, "%s (%s)\n", profile.Nickname, profile.Email)
	return nil
}

func nicknameCmd(ctx context.Context, m *session.Manager, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: authcli nickname NAME")
	}
	if err := m.ChangeNickname(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "nickname is now %s\n", utils.Value(m.UserProfile()).Nickname)
	return nil
}

func passwdCmd(ctx context.Context, m *session.Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	oldPassword := fs.String("old", "", "current password")
	newPassword := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := m.ChangePassword(ctx, *oldPassword, *newPassword); err != nil {
		return err
	}
	fmt.Fprintln(out, "password changed, log in again")
	return nil
}

func statusCmd(_ context.Context, m *session.Manager, _ []string, out io.Writer) error {
	printState(out, m.State())
	return nil
}

// watchCmd blocks until the session expires or the process is interrupted.
func watchCmd(ctx context.Context, m *session.Manager, _ []string, out io.Writer) error {
	if !m.IsLoggedIn() {
		return session.ErrNotLoggedIn
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ended := make(chan struct{})
	var endOnce sync.Once
	unsubscribe := m.Subscribe(func(s session.State) {
		printState(out, s)
		if !s.IsLoggedIn() {
			endOnce.Do(func() { close(ended) })
		}
	})
	defer unsubscribe()

	printState(out, m.State())
	select {
	case <-ended:
		fmt.Fprintln(out, "session ended")
	case <-ctx.Done():
	}
	return nil
}

func printState(out io.Writer, s session.State) {
	if !s.IsLoggedIn() {
		fmt.Fprintln(out, "not logged in")
		return
	}
	profile := utils.Value(s.UserProfile)
	fmt.Fprintf(out, "logged in, expires %s (in %s)", s.ExpiresAt.Format(time.RFC3339), time.Until(s.ExpiresAt).Round(time.Second))
	if profile.Email != "" {
		fmt.Fprintf(out, ", %s (%s)", profile.Nickname, profile.Email)
	}
	fmt.Fprintln(out)
}
