package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"gmessagerie/auth"
	"gmessagerie/delivery"
	"gmessagerie/hub"
	"gmessagerie/internal"
	"gmessagerie/repositories"
	"gmessagerie/services"
	"gmessagerie/transport/rest"
	"gmessagerie/transport/ws"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close, id
// sequence release) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := internal.Logger(config.LogLevel)

	// 2. Database (BadgerDB)
	options := badger.DefaultOptions(config.BadgerFilepath)
	options.Logger = nil
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	messageRepository := repositories.NewMessageRepository(db, logger)
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return exitRuntime, fmt.Errorf("user repository init failed: %w", err)
	}
	defer func() {
		_ = userRepository.Close()
	}()

	// 4. Realtime core
	registry := hub.NewRegistry(logger)
	presence := hub.NewPresence()
	deliveryService := delivery.NewService(messageRepository, userRepository, presence, registry, logger)

	// 5. Authentication
	tokens := auth.NewTokenManager(config.JWTSecret, config.TokenDuration)
	authenticator := auth.NewSessionAuthenticator(tokens, userRepository, logger)
	authService := services.NewAuthService(userRepository, tokens)

	// 6. HTTP surface
	wsHandler := ws.NewHandler(authenticator, deliveryService, registry, presence, config.SendBufferSize, logger)
	handlers := rest.NewHandlers(authService, userRepository, deliveryService, logger)
	router := rest.NewRouter(handlers, wsHandler, authenticator)

	server := &http.Server{
		Addr:    net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Handler: router,
	}

	// 7. Signals & graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return exitRuntime, fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown error: %w", err)
	}

	return exitOK, nil
}
