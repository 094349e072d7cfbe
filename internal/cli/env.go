package cli

import (
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	graw "github.com/jamesprial/go-reddit-session"
	"github.com/jamesprial/go-reddit-session/internal/config"
	"github.com/jamesprial/go-reddit-session/pkg/metrics"
)

// Env holds injectable dependencies for CLI commands.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Now    func() time.Time

	Settings *config.Settings
	Logger   *zap.Logger
	// HTTPClient overrides the client built from Settings.HTTPTimeout.
	HTTPClient *http.Client
	// Browse is handed the authorization URL by the authorize command, after
	// the callback server is listening. nil only prints the URL.
	Browse func(authURL string) error
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithSettings sets the client settings.
func WithSettings(s *config.Settings) EnvOption {
	return func(e *Env) {
		e.Settings = s
	}
}

// WithLogger sets the logger handed to the client.
func WithLogger(l *zap.Logger) EnvOption {
	return func(e *Env) {
		e.Logger = l
	}
}

// WithHTTPClient sets the HTTP client handed to the client.
func WithHTTPClient(c *http.Client) EnvOption {
	return func(e *Env) {
		e.HTTPClient = c
	}
}

// WithBrowse sets the hook that receives the authorization URL.
func WithBrowse(fn func(string) error) EnvOption {
	return func(e *Env) {
		e.Browse = fn
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Now:      time.Now,
		Settings: config.Load(),
		Logger:   zap.NewNop(),
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// clientConfig builds the graw configuration for the current settings.
func (e *Env) clientConfig(rec metrics.Recorder) *graw.Config {
	s := e.Settings

	httpClient := e.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: s.HTTPTimeout}
	}

	return &graw.Config{
		UserAgent:   s.UserAgent,
		Credentials: s.Credentials(),
		Auth:        s.Auth(),
		BaseURL:     s.BaseURL,
		AuthURL:     s.AuthURL,
		HTTPClient:  httpClient,
		Logger:      e.Logger,
		Metrics:     rec,
		Now:         e.Now,
	}
}

func (e *Env) newClient(rec metrics.Recorder) (*graw.Client, error) {
	return graw.NewClient(e.clientConfig(rec))
}
