package graw

import (
	"context"

	"github.com/jamesprial/go-reddit-session/internal"
	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/types"
	"github.com/jamesprial/go-reddit-session/pkg/validation"
)

// DefaultState is the CSRF state sent when none is chosen. Interactive apps
// should pass a fresh random value with WithState and check it on callback.
const DefaultState = "snoots"

type authURLOptions struct {
	state     string
	temporary bool
	authURL   string
}

// AuthURLOption customizes BuildAuthorizationURL.
type AuthURLOption func(*authURLOptions)

// WithState sets the CSRF state token echoed back to the redirect URI.
func WithState(state string) AuthURLOption {
	return func(o *authURLOptions) { o.state = state }
}

// WithTemporary requests a one-hour grant without a refresh token.
func WithTemporary() AuthURLOption {
	return func(o *authURLOptions) { o.temporary = true }
}

// WithAuthURL overrides the host serving the authorize page.
func WithAuthURL(authURL string) AuthURLOption {
	return func(o *authURLOptions) { o.authURL = authURL }
}

// BuildAuthorizationURL returns the URL a user visits to grant the app access.
// The query carries client_id, response_type=code, state, redirect_uri,
// duration (permanent unless WithTemporary) and the space-joined scopes.
func BuildAuthorizationURL(clientID string, scopes []string, redirectURI string, opts ...AuthURLOption) (string, error) {
	o := authURLOptions{state: DefaultState, authURL: DefaultAuthURL}
	for _, opt := range opts {
		opt(&o)
	}

	if clientID == "" {
		return "", &pkgerrs.ConfigError{Field: "clientID", Message: "client id cannot be empty"}
	}
	if err := validation.ValidateScopes(scopes); err != nil {
		return "", err
	}
	if err := validation.ValidateRedirectURI(redirectURI); err != nil {
		return "", err
	}
	if err := validation.ValidateBaseURL("AuthURL", o.authURL); err != nil {
		return "", err
	}

	tokens, err := internal.NewTokenManager(internal.TokenManagerConfig{BaseURL: o.authURL})
	if err != nil {
		return "", err
	}
	return tokens.AuthorizationURL(clientID, scopes, redirectURI, o.state, o.temporary), nil
}

// FromAuthorizationCode creates a client from the code Reddit sent to
// redirectURI. The code is exchanged immediately; when Reddit issues a refresh
// token the client continues with refresh_token grants, otherwise it falls back
// to app-only once the exchanged token expires.
//
// config.Credentials is required; config.Auth is ignored.
func FromAuthorizationCode(ctx context.Context, config *Config, code, redirectURI string) (*Client, error) {
	if config == nil || config.Credentials == nil {
		return nil, &pkgerrs.ConfigError{Field: "Credentials", Message: "an authorization code cannot be exchanged without client credentials"}
	}
	if err := validation.ValidateRedirectURI(redirectURI); err != nil {
		return nil, err
	}

	cfg := *config
	cfg.Auth = nil
	c, err := NewClient(&cfg)
	if err != nil {
		return nil, err
	}

	tok, err := c.tokens.ExchangeAuthorizationCode(ctx, code, c.creds, c.config.UserAgent, redirectURI)
	if err != nil {
		return nil, err
	}

	var desc types.AuthDescriptor
	if tok.RefreshToken != "" {
		desc = types.RefreshTokenAuth{RefreshToken: tok.RefreshToken}
	}
	c.session.Install(desc, tok)

	return c, nil
}
