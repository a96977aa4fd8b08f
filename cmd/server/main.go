package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/pascalpierre555/quantix/auth"
	"github.com/pascalpierre555/quantix/broker"
	"github.com/pascalpierre555/quantix/calendar"
	"github.com/pascalpierre555/quantix/credentials"
	"github.com/pascalpierre555/quantix/credentials/filestore"
	"github.com/pascalpierre555/quantix/credentials/sqlitestore"
	"github.com/pascalpierre555/quantix/grant"
	"github.com/pascalpierre555/quantix/internal/config"
	"github.com/pascalpierre555/quantix/pairing"
	"github.com/pascalpierre555/quantix/provider"
	"github.com/pascalpierre555/quantix/server"
	"github.com/pascalpierre555/quantix/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		closers = append(closers, closer)
	}

	registry, stopSweeper, err := openRegistry(c)
	if err != nil {
		return err
	}
	defer stopSweeper()
	if closer, ok := registry.(io.Closer); ok {
		closers = append(closers, closer)
	}

	handler, err := buildServer(c, store, registry)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func buildServer(c config.Config, store credentials.Repo, registry pairing.Registry) (*server.Server, error) {
	signer, err := token.NewHMACSigner(c.GetJWTSecret())
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET: %w", err)
	}
	tokens := token.New(signer, token.WithTokenExpiry(c.GetSessionTokenExpiry()))

	operator, err := auth.NewOperator(c.GetOperatorUsername(), c.GetOperatorPasswordHash(), c.GetOperatorPassword())
	if err != nil {
		return nil, fmt.Errorf("operator credentials: %w", err)
	}
	authService, err := auth.NewService(operator, tokens, store)
	if err != nil {
		return nil, err
	}

	google, err := provider.NewGoogle(provider.GoogleConfig{
		ClientID:      c.GetGoogleClientID(),
		ClientSecret:  c.GetGoogleClientSecret(),
		RedirectURL:   c.GetGoogleRedirectURL(),
		Scopes:        c.GetGoogleScopes(),
		Timeout:       c.GetProviderTimeout(),
		DefaultExpiry: c.GetDefaultGrantExpiry(),
	})
	if err != nil {
		return nil, err
	}

	grants, err := grant.NewManager(store, google)
	if err != nil {
		return nil, err
	}

	orchestrator, err := broker.New(store, registry, grants, google, broker.Config{
		BaseURL:    c.GetBaseURL(),
		PairingTTL: c.GetPairingTTL(),
	})
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(c.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("TZ_NAME: %w", err)
	}
	events, err := calendar.New(grants, calendar.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	return server.New(c, server.Deps{
		Auth:     authService,
		Pairing:  orchestrator,
		Grants:   grants,
		Calendar: events,
	})
}

func openStore(c config.Config) (credentials.Repo, error) {
	if err := os.MkdirAll(filepath.Dir(c.GetStorePath()), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	switch c.GetStoreDriver() {
	case config.StoreDriverFile:
		log.Info().Str("path", c.GetStorePath()).Msg("using file credential store")
		return filestore.New(c.GetStorePath())
	case config.StoreDriverSQLite:
		log.Info().Str("path", c.GetStorePath()).Msg("using sqlite credential store")
		return sqlitestore.New(c.GetStorePath())
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", c.GetStoreDriver())
	}
}

// openRegistry returns the pairing registry and a func that stops any
// background work it started.
func openRegistry(c config.Config) (pairing.Registry, func(), error) {
	switch c.GetPairingRegistry() {
	case config.RegistryMemory:
		registry := pairing.NewInMemoryRegistry()
		sweeper := pairing.NewSweeper(registry, c.GetPairingSweepInterval())
		sweeper.Start()
		return registry, sweeper.Stop, nil
	case config.RegistryRedis:
		registry, err := pairing.NewRedisRegistry(c.GetRedisAddr(), c.GetRedisPassword())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("using redis pairing registry")
		return registry, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown PAIRING_REGISTRY %q", c.GetPairingRegistry())
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
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
