package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/logger"
	"github.com/jamesprial/go-reddit-session/pkg/metrics"
	"github.com/jamesprial/go-reddit-session/pkg/types"
)

const (
	defaultTokenEndpointPath     = "api/v1/access_token"
	defaultAuthorizeEndpointPath = "api/v1/authorize"

	// DefaultExpiryMargin is how long before its declared expiry a token is
	// already treated as expired, so a request never races the deadline.
	DefaultExpiryMargin = 30 * time.Second
)

// TokenManagerConfig configures a TokenManager.
type TokenManagerConfig struct {
	HTTPClient *http.Client
	// BaseURL is the public host serving the token and authorize endpoints.
	BaseURL string
	// TokenPath can be empty to use the default Reddit token endpoint.
	TokenPath string
	// ExpiryMargin of zero means DefaultExpiryMargin; a negative value disables the margin.
	ExpiryMargin time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
	Metrics      metrics.Recorder
}

// TokenManager exchanges credentials and grants for session tokens. It holds
// no session state: callers pass the current token in and store the result.
type TokenManager struct {
	client       *http.Client
	BaseURL      *url.URL
	tokenURL     *url.URL
	authorizeURL *url.URL
	margin       time.Duration
	now          func() time.Time
	logger       *zap.Logger
	metrics      metrics.Recorder
}

// NewTokenManager creates a new token manager.
func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: fmt.Sprintf("failed to parse base URL: %v", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = defaultTokenEndpointPath
	}

	resolvedTokenURL, err := parsedURL.Parse(tokenPath)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "TokenPath", Message: fmt.Sprintf("failed to parse token endpoint path: %v", err)}
	}
	authorizeURL, _ := parsedURL.Parse(defaultAuthorizeEndpointPath)

	margin := cfg.ExpiryMargin
	switch {
	case margin == 0:
		margin = DefaultExpiryMargin
	case margin < 0:
		margin = 0
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	return &TokenManager{
		client:       httpClient,
		BaseURL:      parsedURL,
		tokenURL:     resolvedTokenURL,
		authorizeURL: authorizeURL,
		margin:       margin,
		now:          now,
		logger:       logger.OrNop(cfg.Logger),
		metrics:      rec,
	}, nil
}

// Endpoint returns Reddit's OAuth endpoints. Reddit wants the client
// credentials in an HTTP Basic header, never in the form body.
func (m *TokenManager) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   m.authorizeURL.String(),
		TokenURL:  m.tokenURL.String(),
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// Expired reports whether t must be replaced before use.
func (m *TokenManager) Expired(t *types.Token) bool {
	return t.ExpiredAt(m.now(), m.margin)
}

// ObtainOrRefresh returns current when it is still valid. Otherwise it performs
// the grant matching desc: password for PasswordAuth, refresh_token for
// RefreshTokenAuth, client_credentials for AppOnlyAuth or nil.
func (m *TokenManager) ObtainOrRefresh(ctx context.Context, userAgent string, current *types.Token, creds *types.Credentials, desc types.AuthDescriptor) (*types.Token, error) {
	if !m.Expired(current) {
		return current, nil
	}

	if creds == nil {
		return nil, &pkgerrs.ConfigError{Field: "Credentials", Message: "client credentials are required to request a token"}
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	if desc == nil {
		desc = types.AppOnlyAuth{}
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	ctx = m.withUserAgent(ctx, userAgent)
	conf := m.oauthConfig(creds, "")

	var (
		tok *oauth2.Token
		err error
	)
	switch d := desc.(type) {
	case types.PasswordAuth:
		tok, err = conf.PasswordCredentialsToken(ctx, d.Username, d.Password)
	case *types.PasswordAuth:
		tok, err = conf.PasswordCredentialsToken(ctx, d.Username, d.Password)
	case types.RefreshTokenAuth:
		tok, err = m.refresh(ctx, conf, d.RefreshToken)
	case *types.RefreshTokenAuth:
		tok, err = m.refresh(ctx, conf, d.RefreshToken)
	case types.AppOnlyAuth, *types.AppOnlyAuth:
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     m.tokenURL.String(),
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		tok, err = cc.Token(ctx)
	default:
		return nil, &pkgerrs.ConfigError{Field: "Auth", Message: fmt.Sprintf("unsupported auth descriptor %T", desc)}
	}

	return m.finish(desc.Grant(), tok, err)
}

// ExchangeAuthorizationCode performs the authorization_code grant for a code
// returned to redirectURI by Reddit's authorize page.
func (m *TokenManager) ExchangeAuthorizationCode(ctx context.Context, code string, creds *types.Credentials, userAgent, redirectURI string) (*types.Token, error) {
	if creds == nil {
		return nil, &pkgerrs.ConfigError{Field: "Credentials", Message: "client credentials are required to exchange an authorization code"}
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, &pkgerrs.ConfigError{Field: "code", Message: "authorization code cannot be empty"}
	}

	ctx = m.withUserAgent(ctx, userAgent)
	tok, err := m.oauthConfig(creds, redirectURI).Exchange(ctx, code)
	return m.finish(types.GrantAuthorizationCode, tok, err)
}

// AuthorizationURL builds the interactive authorization URL.
func (m *TokenManager) AuthorizationURL(clientID string, scopes []string, redirectURI, state string, temporary bool) string {
	duration := "permanent"
	if temporary {
		duration = "temporary"
	}

	conf := &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    m.Endpoint(),
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}
	return conf.AuthCodeURL(state, oauth2.SetAuthURLParam("duration", duration))
}

func (m *TokenManager) refresh(ctx context.Context, conf *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

func (m *TokenManager) oauthConfig(creds *types.Credentials, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     m.Endpoint(),
		RedirectURL:  redirectURI,
	}
}

func (m *TokenManager) finish(grant string, tok *oauth2.Token, err error) (*types.Token, error) {
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errors.New("access token was empty in response")
	}
	if err != nil {
		err = classifyGrantError(grant, err)
	}
	m.metrics.ObserveGrant(grant, err)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("token obtained",
		zap.String("grant", grant),
		zap.Time("expiry", tok.Expiry),
		zap.Bool("refreshable", tok.RefreshToken != ""),
	)

	return &types.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// withUserAgent routes the oauth2 package's token requests through the
// configured client with Reddit's mandatory User-Agent attached.
func (m *TokenManager) withUserAgent(ctx context.Context, userAgent string) context.Context {
	base := m.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	hc := &http.Client{
		Transport:     &userAgentTransport{base: base, userAgent: userAgent},
		Timeout:       m.client.Timeout,
		CheckRedirect: m.client.CheckRedirect,
		Jar:           m.client.Jar,
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}

func classifyGrantError(grant string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr := &pkgerrs.AuthError{
			Grant:   grant,
			Message: retrieveErr.ErrorCode,
			Body:    string(retrieveErr.Body),
			Err:     err,
		}
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return authErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &pkgerrs.TransportError{Operation: grant + " grant", URL: urlErr.URL, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &pkgerrs.TransportError{Operation: grant + " grant", Err: err}
	}

	return &pkgerrs.AuthError{Grant: grant, Err: err}
}
