package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jamesprial/go-reddit-session/internal/cli"
	"github.com/jamesprial/go-reddit-session/internal/config"
	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/logger"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const (
	ExitOK        = 0
	ExitGeneral   = 1
	ExitUsage     = 2
	ExitConfig    = 3
	ExitAuth      = 4
	ExitAPI       = 5
	ExitTransport = 6
	ExitInterrupt = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings := config.Load()
	log, err := logger.New(settings.Environment, settings.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitGeneral)
	}
	defer func() { _ = log.Sync() }()

	env := cli.NewEnv(cli.WithSettings(settings), cli.WithLogger(log))

	rootCmd := &cobra.Command{
		Use:           "graw",
		Short:         "Talk to the Reddit API with a managed OAuth session",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.AuthorizeURLCmd(env))
	rootCmd.AddCommand(cli.AuthorizeCmd(env))
	rootCmd.AddCommand(cli.GetCmd(env))
	rootCmd.AddCommand(cli.PollCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		_ = log.Sync()
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}
	if isCobraUsageError(err) || errors.Is(err, cli.ErrInvalidQuery) || errors.Is(err, cli.ErrInvalidInterval) {
		return ExitUsage
	}

	var (
		cfgErr       *pkgerrs.ConfigError
		authErr      *pkgerrs.AuthError
		apiErr       *pkgerrs.APIError
		transportErr *pkgerrs.TransportError
	)
	switch {
	case errors.As(err, &cfgErr), errors.Is(err, cli.ErrCredentialsMissing), errors.Is(err, cli.ErrInvalidRedirect):
		return ExitConfig
	case errors.As(err, &authErr), errors.Is(err, cli.ErrStateMismatch), errors.Is(err, cli.ErrAuthorizationDenied):
		return ExitAuth
	case errors.As(err, &apiErr):
		return ExitAPI
	case errors.As(err, &transportErr):
		return ExitTransport
	}
	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",
	"unknown flag",
	"unknown shorthand",
	"flag needs an argument",
	"invalid argument",
	"accepts ",
	"requires at least",
	"unknown command",
}

func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
