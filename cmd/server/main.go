package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/token"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const revokedCleanupInterval = 10 * time.Minute

var errPanicRecovered = errors.New("panic recovered")

func main() {
	if path := os.Getenv(config.ConfigFileEnvVar); path != "" {
		if err := config.LoadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
			os.Exit(1)
		}
	}

	for {
		err := run()
		if errors.Is(err, errPanicRecovered) {
			log.Error().Err(err).Msg("Restarting server")
			time.Sleep(1 * time.Second)
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Error running server")
		}
		break
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	c := config.New()
	logger := logging.Configure(os.Stderr, c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	signer, err := token.NewHMACSigner(c.GetSigningSecret(), c.GetRetiredSigningSecrets()...)
	if err != nil {
		return fmt.Errorf("token.NewHMACSigner: %w", err)
	}
	tokenOptions := []token.ManagerOption{
		token.WithTokenExpiry(c.GetAccessTokenExpiry()),
		token.WithIssuer(c.GetBaseURL()),
	}
	switch c.GetRevocationStore() {
	case config.RevocationStoreMemory:
	case config.RevocationStoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		defer rdb.Close()
		tokenOptions = append(tokenOptions, token.WithRevokedTokenCache(token.NewRedisRevokedTokenCache(rdb, c.GetRedisPrefix(), nil)))
		logger.Info().Str("addr", c.GetRedisAddr()).Msg("Revoked tokens kept in Redis")
	default:
		return fmt.Errorf("unknown REVOCATION_STORE %q", c.GetRevocationStore())
	}
	tokens := token.New(signer, tokenOptions...)

	handler, err := server.New(c, fakeuserrepo.NewFakeUserRepo(), tokens, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupRevokedTokens(ctx, tokens)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func cleanupRevokedTokens(ctx context.Context, tokens *token.Manager) {
	ticker := time.NewTicker(revokedCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tokens.CleanupRevokedTokens()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
