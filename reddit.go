package graw

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jamesprial/go-reddit-session/internal"
	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/logger"
	"github.com/jamesprial/go-reddit-session/pkg/metrics"
	"github.com/jamesprial/go-reddit-session/pkg/types"
	"github.com/jamesprial/go-reddit-session/pkg/validation"
)

const (
	// DefaultBaseURL is the Reddit OAuth API host used for authenticated calls
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the public Reddit host, used for anonymous calls and OAuth exchanges
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
	// DefaultExpiryMargin is how early a token is treated as expired
	DefaultExpiryMargin = internal.DefaultExpiryMargin
)

// Config holds the configuration for the Reddit client.
//
// Credentials decide how calls are routed: with Credentials every call goes to
// the OAuth host with a bearer token, without them every call goes to the
// public host unauthenticated.
//
// Example for app-only auth:
//
//	config := &Config{
//		UserAgent:   "linux:myapp:v1.0 (by /u/yourusername)",
//		Credentials: &types.Credentials{ClientID: "id", ClientSecret: "secret"},
//	}
//
// Example for a script app acting as its own user:
//
//	config := &Config{
//		UserAgent:   "linux:myapp:v1.0 (by /u/yourusername)",
//		Credentials: &types.Credentials{ClientID: "id", ClientSecret: "secret"},
//		Auth:        types.PasswordAuth{Username: "user", Password: "pass"},
//	}
type Config struct {
	// UserAgent identifies your application to Reddit. Required.
	// Should follow format: "platform:app-id:version (by /u/username)"
	UserAgent string

	// Credentials of the Reddit app. Optional; nil means anonymous access.
	Credentials *types.Credentials

	// Auth describes the end user. nil means app-only (client_credentials).
	// Requires Credentials.
	Auth types.AuthDescriptor

	// BaseURL for authenticated calls. Defaults to DefaultBaseURL.
	BaseURL string

	// AuthURL for anonymous calls and token exchanges. Defaults to DefaultAuthURL.
	AuthURL string

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client

	// Logger for structured diagnostics. Optional; debug-level events only.
	Logger *zap.Logger

	// Metrics receives request, grant and rate-limit events. Optional.
	Metrics metrics.Recorder

	// TokenExpiryMargin treats tokens as expired this long before their declared
	// expiry. Zero means DefaultExpiryMargin; negative disables the margin.
	TokenExpiryMargin time.Duration

	// Now overrides the clock used for token expiry and rate-limit resets.
	Now func() time.Time
}

// Client is the entry point every resource operation goes through.
// It is safe for concurrent use.
type Client struct {
	config *Config
	creds  *types.Credentials
	logger *zap.Logger

	tokens    *internal.TokenManager
	session   *internal.TokenSession
	anonymous *internal.AnonymousGateway
	authed    *internal.AuthenticatedGateway
}

// NewClient creates a Reddit client with the provided configuration.
// It validates the configuration but performs no network calls; the first
// authenticated call obtains a token.
//
// Returns a *errors.ConfigError if:
//   - config is nil
//   - UserAgent is missing or generic
//   - Auth is set without Credentials, or is incomplete
//   - BaseURL or AuthURL are not absolute URLs
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}

	// Work on a copy so the caller's Config is never touched.
	cfg := *config

	if err := validation.ValidateUserAgent(cfg.UserAgent); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Logger = logger.OrNop(cfg.Logger)

	if err := validation.ValidateBaseURL("BaseURL", cfg.BaseURL); err != nil {
		return nil, err
	}
	if err := validation.ValidateBaseURL("AuthURL", cfg.AuthURL); err != nil {
		return nil, err
	}

	var creds *types.Credentials
	if cfg.Credentials != nil {
		if err := cfg.Credentials.Validate(); err != nil {
			return nil, err
		}
		c := *cfg.Credentials
		creds = &c
		cfg.Credentials = creds
	}

	if cfg.Auth != nil {
		if creds == nil {
			return nil, &pkgerrs.ConfigError{Field: "Auth", Message: "user authentication requires Credentials"}
		}
		if err := cfg.Auth.Validate(); err != nil {
			return nil, err
		}
	}

	tokens, err := internal.NewTokenManager(internal.TokenManagerConfig{
		HTTPClient:   cfg.HTTPClient,
		BaseURL:      cfg.AuthURL,
		ExpiryMargin: cfg.TokenExpiryMargin,
		Now:          cfg.Now,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	anonymous, err := internal.NewAnonymousGateway(gatewayConfig(&cfg, cfg.AuthURL), creds)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:    &cfg,
		creds:     creds,
		logger:    cfg.Logger,
		tokens:    tokens,
		anonymous: anonymous,
	}

	if creds != nil {
		c.session = internal.NewTokenSession(tokens, creds, cfg.UserAgent, cfg.Auth)
		c.authed, err = internal.NewAuthenticatedGateway(gatewayConfig(&cfg, cfg.BaseURL), c.session)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

func gatewayConfig(cfg *Config, baseURL string) internal.GatewayConfig {
	return internal.GatewayConfig{
		HTTPClient: cfg.HTTPClient,
		BaseURL:    baseURL,
		UserAgent:  cfg.UserAgent,
		Now:        cfg.Now,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	}
}

// gateway picks the gateway for every call: authenticated iff Credentials exist.
func (c *Client) gateway() internal.Gateway {
	if c.creds != nil {
		return c.authed
	}
	return c.anonymous
}

// Get performs a GET against path and decodes the unwrapped result into v.
// query may be nil, a types.Query, or any types.Encoder.
//
// Returns an error if:
//   - a token cannot be obtained (*errors.AuthError, *errors.ConfigError)
//   - Reddit reports a failure (*errors.APIError)
//   - the request or decoding fails (*errors.TransportError)
func (c *Client) Get(ctx context.Context, path string, query types.Encoder, v any) error {
	return c.gateway().Get(ctx, path, query, v)
}

// Post performs a form-encoded POST. api_type=json is added to the payload.
func (c *Client) Post(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error {
	return c.gateway().Post(ctx, path, payload, query, v)
}

// PostJSON performs a POST with a JSON body. api_type=json is added to the payload.
func (c *Client) PostJSON(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error {
	return c.gateway().PostJSON(ctx, path, payload, query, v)
}

// ReAuthorize replaces the user descriptor and discards the live token. The
// next authenticated call performs a fresh grant with desc.
func (c *Client) ReAuthorize(desc types.AuthDescriptor) error {
	if c.session == nil {
		return &pkgerrs.ConfigError{Field: "Credentials", Message: "re-authorization requires Credentials"}
	}
	if desc != nil {
		if err := desc.Validate(); err != nil {
			return err
		}
	}
	c.session.Reset(desc)
	return nil
}

// RefreshToken returns the refresh token of the live token, if there is one.
// Persist it and pass it back as types.RefreshTokenAuth to resume the session
// after a restart.
func (c *Client) RefreshToken() (string, bool) {
	tok, ok := c.Token()
	if !ok || tok.RefreshToken == "" {
		return "", false
	}
	return tok.RefreshToken, true
}

// Token returns a copy of the live token, if one has been obtained.
func (c *Client) Token() (types.Token, bool) {
	if c.session == nil {
		return types.Token{}, false
	}
	tok := c.session.Current()
	if tok == nil {
		return types.Token{}, false
	}
	return *tok, true
}

// RateLimit returns the last rate-limit snapshot Reddit reported to the gateway
// in use. It is advisory; the client never waits on it.
func (c *Client) RateLimit() (types.RateLimit, bool) {
	return c.gateway().RateLimit()
}

// UserAgent returns the configured user agent.
func (c *Client) UserAgent() string {
	return c.config.UserAgent
}
