package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
)

// Credentials identify the application to Reddit. They are issued on the
// app preferences page and never change for the lifetime of a client.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Validate reports whether the credentials can be used for a grant exchange.
func (c Credentials) Validate() error {
	if c.ClientID == "" {
		return &pkgerrs.ConfigError{Field: "ClientID", Message: "client id cannot be empty"}
	}
	return nil
}

// AuthDescriptor describes how the end user (not the app) authenticates.
// It is a closed set: PasswordAuth, RefreshTokenAuth and AppOnlyAuth.
// A nil AuthDescriptor is treated as AppOnlyAuth.
type AuthDescriptor interface {
	// Grant returns the OAuth grant type used to obtain a token for this descriptor.
	Grant() string
	// Validate reports whether the descriptor carries everything its grant needs.
	Validate() error

	authDescriptor()
}

// OAuth grant types understood by Reddit's token endpoint.
const (
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
)

// PasswordAuth authenticates a script app's own user with username and password.
type PasswordAuth struct {
	Username string
	Password string
}

func (PasswordAuth) Grant() string { return GrantPassword }

func (a PasswordAuth) Validate() error {
	if a.Username == "" {
		return &pkgerrs.ConfigError{Field: "Username", Message: "username cannot be empty"}
	}
	if a.Password == "" {
		return &pkgerrs.ConfigError{Field: "Password", Message: "password cannot be empty"}
	}
	return nil
}

func (PasswordAuth) authDescriptor() {}

// RefreshTokenAuth authenticates a user through a refresh token obtained from
// an earlier authorization code exchange.
type RefreshTokenAuth struct {
	RefreshToken string
}

func (RefreshTokenAuth) Grant() string { return GrantRefreshToken }

func (a RefreshTokenAuth) Validate() error {
	if a.RefreshToken == "" {
		return &pkgerrs.ConfigError{Field: "RefreshToken", Message: "refresh token cannot be empty"}
	}
	return nil
}

func (RefreshTokenAuth) authDescriptor() {}

// AppOnlyAuth authenticates the application itself, with no end user.
type AppOnlyAuth struct{}

func (AppOnlyAuth) Grant() string { return GrantClientCredentials }

func (AppOnlyAuth) Validate() error { return nil }

func (AppOnlyAuth) authDescriptor() {}

// Token is a live session credential. It is replaced wholesale, never mutated.
type Token struct {
	AccessToken string
	// RefreshToken is empty for grants that don't issue one (client_credentials, password).
	RefreshToken string
	// Expiry is the issue time plus the lifetime Reddit declared. A zero value
	// means Reddit declared no lifetime; such a token serves a single call.
	Expiry time.Time
}

// ExpiredAt reports whether the token should be considered expired at now,
// treating it as expired margin before its declared expiry.
func (t *Token) ExpiredAt(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return true
	}
	return !now.Before(t.Expiry.Add(-margin))
}

// RateLimit is the most recently observed rate-limit state reported by Reddit.
// It is advisory; the client never blocks on it.
type RateLimit struct {
	// Remaining is the number of requests left in the current window.
	Remaining int
	// Reset is when the current window ends.
	Reset time.Time
	// Observed is when the headers were read.
	Observed time.Time
}

// Encoder is implemented by request shapes that know how to render themselves
// as query parameters. Query is the generic fallback.
type Encoder interface {
	Values() (url.Values, error)
}

// Query holds request query parameters. Values must be primitives.
type Query map[string]any

// Values converts the query to url.Values, rejecting non-primitive values.
func (q Query) Values() (url.Values, error) {
	return primitiveValues("query", q)
}

// Payload holds the body of a write request.
type Payload map[string]any

// Form renders the payload for form encoding. Values must be primitives.
func (p Payload) Form() (url.Values, error) {
	return primitiveValues("payload", p)
}

// JSON renders the payload as a JSON object. Any JSON-encodable value is accepted.
func (p Payload) JSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "payload", Message: err.Error()}
	}
	return data, nil
}

// With returns a copy of the payload with key set to value.
func (p Payload) With(key string, value any) Payload {
	out := make(Payload, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = value
	return out
}

func primitiveValues(field string, m map[string]any) (url.Values, error) {
	values := url.Values{}
	if len(m) == 0 {
		return values, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s, err := FormatPrimitive(m[k])
		if err != nil {
			return nil, &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("key %q: %v", k, err)}
		}
		values.Set(k, s)
	}
	return values, nil
}

// FormatPrimitive renders a primitive value the way Reddit expects it on the wire.
func FormatPrimitive(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case fmt.Stringer:
		return val.String(), nil
	case nil:
		return "", fmt.Errorf("nil value")
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
