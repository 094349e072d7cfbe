// Package config reads the graw CLI settings from the environment.
package config

import (
	"os"
	"runtime"
	"time"

	"github.com/jamesprial/go-reddit-session/pkg/types"
)

// Environment variable names.
const (
	EnvClientID     = "REDDIT_CLIENT_ID"
	EnvClientSecret = "REDDIT_CLIENT_SECRET"
	EnvUsername     = "REDDIT_USERNAME"
	EnvPassword     = "REDDIT_PASSWORD"
	EnvRefreshToken = "REDDIT_REFRESH_TOKEN"
	EnvUserAgent    = "REDDIT_USER_AGENT"
	EnvRedirectURI  = "REDDIT_REDIRECT_URI"
	EnvBaseURL      = "REDDIT_BASE_URL"
	EnvAuthURL      = "REDDIT_AUTH_URL"
	EnvEnvironment  = "GRAW_ENV"
	EnvLogLevel     = "GRAW_LOG_LEVEL"
	EnvHTTPTimeout  = "GRAW_HTTP_TIMEOUT"
)

const (
	DefaultRedirectURI = "http://localhost:8080/callback"
	DefaultHTTPTimeout = 30 * time.Second
)

// DefaultUserAgent follows Reddit's platform:app-id:version convention.
var DefaultUserAgent = runtime.GOOS + ":graw-session-cli:v0.1.0"

// Settings holds everything the CLI needs to build a client.
type Settings struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	UserAgent    string
	RedirectURI  string
	// BaseURL and AuthURL override the Reddit hosts; empty means the defaults.
	BaseURL     string
	AuthURL     string
	Environment string
	LogLevel    string
	HTTPTimeout time.Duration
}

// Load reads Settings from the environment, applying defaults.
func Load() *Settings {
	return &Settings{
		ClientID:     GetEnv(EnvClientID, ""),
		ClientSecret: GetEnv(EnvClientSecret, ""),
		Username:     GetEnv(EnvUsername, ""),
		Password:     GetEnv(EnvPassword, ""),
		RefreshToken: GetEnv(EnvRefreshToken, ""),
		UserAgent:    GetEnv(EnvUserAgent, DefaultUserAgent),
		RedirectURI:  GetEnv(EnvRedirectURI, DefaultRedirectURI),
		BaseURL:      GetEnv(EnvBaseURL, ""),
		AuthURL:      GetEnv(EnvAuthURL, ""),
		Environment:  GetEnv(EnvEnvironment, "prod"),
		LogLevel:     GetEnv(EnvLogLevel, "warn"),
		HTTPTimeout:  GetEnvDuration(EnvHTTPTimeout, DefaultHTTPTimeout),
	}
}

// Credentials returns the app credentials, or nil when no client id is set.
func (s *Settings) Credentials() *types.Credentials {
	if s.ClientID == "" {
		return nil
	}
	return &types.Credentials{ClientID: s.ClientID, ClientSecret: s.ClientSecret}
}

// Auth picks the user descriptor: a refresh token wins over a password, and
// with neither the client runs app-only.
func (s *Settings) Auth() types.AuthDescriptor {
	switch {
	case s.Credentials() == nil:
		return nil
	case s.RefreshToken != "":
		return types.RefreshTokenAuth{RefreshToken: s.RefreshToken}
	case s.Username != "" || s.Password != "":
		return types.PasswordAuth{Username: s.Username, Password: s.Password}
	default:
		return nil
	}
}

// GetEnv returns the environment variable value for key, or def if unset or empty.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvDuration returns the environment variable value for key parsed as time.Duration, or def if unset or invalid.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}
