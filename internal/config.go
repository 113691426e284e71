package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

type Config struct {
	Host     string `env:"HOST,required=true"`
	Port     int    `env:"PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	JWTSecret     string        `env:"JWT_SECRET,required=true"`
	TokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	// Capacity of each connection's outbound buffer. A client that lets
	// this many events pile up starts losing them.
	SendBufferSize int `env:"SEND_BUFFER_SIZE,required=true"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`
}

// Validate enforces the constraints env tags cannot express. A zero
// send buffer would make every connection drop all of its events,
// starting with the presence snapshot, so it is a startup error.
func (c Config) Validate() error {
	if c.SendBufferSize < 1 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", c.SendBufferSize)
	}
	if c.TokenDuration <= 0 {
		return fmt.Errorf("AUTH_TOKEN_DURATION must be positive, got %s", c.TokenDuration)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Logger builds the process-wide slog.Logger at the configured level.
func Logger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
