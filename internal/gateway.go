package internal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/logger"
	"github.com/jamesprial/go-reddit-session/pkg/metrics"
	"github.com/jamesprial/go-reddit-session/pkg/types"
	"github.com/jamesprial/go-reddit-session/pkg/validation"
)

const (
	// apiTypeKey/apiTypeJSON select the "json" result wrapper for write endpoints.
	apiTypeKey  = "api_type"
	apiTypeJSON = "json"
	// rawJSONKey stops Reddit from HTML-escaping &, < and > in responses.
	rawJSONKey = "raw_json"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 32 << 20
)

// Gateway performs requests against one Reddit host. There are exactly two
// implementations: AnonymousGateway and AuthenticatedGateway.
type Gateway interface {
	Get(ctx context.Context, path string, query types.Encoder, v any) error
	Post(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error
	PostJSON(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error
	RateLimit() (types.RateLimit, bool)
}

// Credential is attached to an outgoing request.
type Credential interface {
	apply(req *http.Request)
}

// BearerCredential carries an OAuth access token.
type BearerCredential struct {
	AccessToken string
}

func (c BearerCredential) apply(req *http.Request) {
	req.Header.Set("Authorization", "bearer "+c.AccessToken)
}

// BasicCredential authenticates the app itself over HTTP Basic.
type BasicCredential struct {
	Username string
	Password string
}

func (c BasicCredential) apply(req *http.Request) {
	req.SetBasicAuth(c.Username, c.Password)
}

// variant is what distinguishes the two gateways.
type variant interface {
	name() string
	auth(ctx context.Context) (Credential, error)
	mapPath(p string) string
}

// GatewayConfig holds what both gateways share.
type GatewayConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
	Now        func() time.Time
	Logger     *zap.Logger
	Metrics    metrics.Recorder
}

// requester is the shared request machinery behind both gateways.
type requester struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	limits    *RateLimitRecorder
	now       func() time.Time
	logger    *zap.Logger
	metrics   metrics.Recorder
}

func newRequester(cfg GatewayConfig) (*requester, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: err.Error()}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	return &requester{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: cfg.UserAgent,
		limits:    NewRateLimitRecorder(now),
		now:       now,
		logger:    logger.OrNop(cfg.Logger),
		metrics:   rec,
	}, nil
}

// AnonymousGateway talks to the public host. Without credentials requests are
// fully unauthenticated; with credentials the app identifies itself over Basic auth.
type AnonymousGateway struct {
	*requester
	creds *types.Credentials
}

// NewAnonymousGateway creates a gateway for the public host. creds may be nil.
func NewAnonymousGateway(cfg GatewayConfig, creds *types.Credentials) (*AnonymousGateway, error) {
	r, err := newRequester(cfg)
	if err != nil {
		return nil, err
	}
	return &AnonymousGateway{requester: r, creds: creds}, nil
}

func (g *AnonymousGateway) name() string { return "anonymous" }

func (g *AnonymousGateway) auth(context.Context) (Credential, error) {
	if g.creds == nil {
		return nil, nil
	}
	return BasicCredential{Username: g.creds.ClientID}, nil
}

// mapPath adds the .json suffix the public host needs to answer with JSON.
func (g *AnonymousGateway) mapPath(p string) string {
	if path.Ext(p) == ".json" {
		return p
	}
	return strings.TrimSuffix(p, "/") + ".json"
}

func (g *AnonymousGateway) Get(ctx context.Context, path string, query types.Encoder, v any) error {
	return g.get(ctx, g, path, query, v)
}

func (g *AnonymousGateway) Post(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error {
	return g.post(ctx, g, path, payload, query, v)
}

func (g *AnonymousGateway) PostJSON(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error {
	return g.postJSON(ctx, g, path, payload, query, v)
}

// AuthenticatedGateway talks to the OAuth host with a bearer token from the session.
type AuthenticatedGateway struct {
	*requester
	session *TokenSession
}

// NewAuthenticatedGateway creates a gateway for the OAuth host.
func NewAuthenticatedGateway(cfg GatewayConfig, session *TokenSession) (*AuthenticatedGateway, error) {
	r, err := newRequester(cfg)
	if err != nil {
		return nil, err
	}
	return &AuthenticatedGateway{requester: r, session: session}, nil
}

func (g *AuthenticatedGateway) name() string { return "authenticated" }

func (g *AuthenticatedGateway) auth(ctx context.Context) (Credential, error) {
	tok, err := g.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	return BearerCredential{AccessToken: tok.AccessToken}, nil
}

func (g *AuthenticatedGateway) mapPath(p string) string {
	return p
}

func (g *AuthenticatedGateway) Get(ctx context.Context, path string, query types.Encoder, v any) error {
	return g.get(ctx, g, path, query, v)
}

func (g *AuthenticatedGateway) Post(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error {
	return g.post(ctx, g, path, payload, query, v)
}

func (g *AuthenticatedGateway) PostJSON(ctx context.Context, path string, payload types.Payload, query types.Encoder, v any) error {
	return g.postJSON(ctx, g, path, payload, query, v)
}

// RateLimit returns the last snapshot observed by this gateway.
func (r *requester) RateLimit() (types.RateLimit, bool) {
	return r.limits.Latest()
}

func (r *requester) get(ctx context.Context, gw variant, path string, query types.Encoder, v any) error {
	req, err := r.NewRequest(ctx, gw, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	return r.Do(gw, req, v)
}

func (r *requester) post(ctx context.Context, gw variant, path string, payload types.Payload, query types.Encoder, v any) error {
	form, err := payload.With(apiTypeKey, apiTypeJSON).Form()
	if err != nil {
		return err
	}
	body := strings.NewReader(form.Encode())
	req, err := r.NewRequest(ctx, gw, http.MethodPost, path, query, body, "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	return r.Do(gw, req, v)
}

func (r *requester) postJSON(ctx context.Context, gw variant, path string, payload types.Payload, query types.Encoder, v any) error {
	data, err := payload.With(apiTypeKey, apiTypeJSON).JSON()
	if err != nil {
		return err
	}
	req, err := r.NewRequest(ctx, gw, http.MethodPost, path, query, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	return r.Do(gw, req, v)
}

// NewRequest builds a request for path on the gateway's host: the mandatory
// User-Agent, the fixed query defaults, and whatever credential the gateway provides.
func (r *requester) NewRequest(ctx context.Context, gw variant, method, path string, query types.Encoder, body io.Reader, contentType string) (*http.Request, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, err
	}

	u, err := r.BaseURL.Parse(strings.TrimPrefix(gw.mapPath(path), "/"))
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "path", Message: err.Error()}
	}

	params := url.Values{}
	if query != nil {
		values, err := query.Values()
		if err != nil {
			return nil, err
		}
		for k, vs := range values {
			params[k] = append([]string(nil), vs...)
		}
	}
	params.Set(rawJSONKey, "1")
	params.Set(apiTypeKey, apiTypeJSON)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.TransportError{Operation: method, URL: u.String(), Err: err}
	}

	req.Header.Set("User-Agent", r.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	cred, err := gw.auth(ctx)
	if err != nil {
		return nil, err
	}
	if cred != nil {
		cred.apply(req)
	}

	return req, nil
}

// Do sends req, records the rate-limit headers of whatever came back, and
// unwraps the body into v.
func (r *requester) Do(gw variant, req *http.Request, v any) error {
	start := r.now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.metrics.ObserveRequest(gw.name(), req.Method, 0, r.now().Sub(start))
		return &pkgerrs.TransportError{Operation: req.Method, URL: redactedURL(req.URL), Err: err}
	}
	defer resp.Body.Close()

	r.metrics.ObserveRequest(gw.name(), req.Method, resp.StatusCode, r.now().Sub(start))
	if snapshot, ok := r.limits.Record(resp.Header); ok {
		r.metrics.ObserveRateLimit(snapshot)
	}

	r.logger.Debug("reddit request",
		zap.String("gateway", gw.name()),
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", r.now().Sub(start)),
	)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &pkgerrs.TransportError{Operation: "read response", URL: redactedURL(req.URL), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp, body)
	}

	return Unwrap(body, v)
}

// statusError turns a non-2xx response into an APIError, keeping Reddit's own
// error text when the body carries one.
func statusError(resp *http.Response, body []byte) error {
	if err := Unwrap(body, nil); err != nil {
		if apiErr, ok := err.(*pkgerrs.APIError); ok {
			apiErr.StatusCode = resp.StatusCode
			return apiErr
		}
	}
	return &pkgerrs.APIError{
		StatusCode:  resp.StatusCode,
		Message:     strconv.Itoa(resp.StatusCode),
		Description: http.StatusText(resp.StatusCode),
		Details:     string(body),
	}
}

func redactedURL(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	return c.String()
}

var (
	_ Gateway = (*AnonymousGateway)(nil)
	_ Gateway = (*AuthenticatedGateway)(nil)
)
