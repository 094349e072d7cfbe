package types

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
)

func TestAuthDescriptor_Grant(t *testing.T) {
	tests := []struct {
		desc AuthDescriptor
		want string
	}{
		{PasswordAuth{Username: "u", Password: "p"}, GrantPassword},
		{RefreshTokenAuth{RefreshToken: "r"}, GrantRefreshToken},
		{AppOnlyAuth{}, GrantClientCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.desc.Grant())
			assert.NoError(t, tt.desc.Validate())
		})
	}
}

func TestAuthDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name  string
		desc  AuthDescriptor
		field string
	}{
		{"missing username", PasswordAuth{Password: "p"}, "Username"},
		{"missing password", PasswordAuth{Username: "u"}, "Password"},
		{"missing refresh token", RefreshTokenAuth{}, "RefreshToken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			var cfgErr *pkgerrs.ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCredentials_Validate(t *testing.T) {
	assert.NoError(t, Credentials{ClientID: "cid"}.Validate())

	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, Credentials{ClientSecret: "s"}.Validate(), &cfgErr)
	assert.Equal(t, "ClientID", cfgErr.Field)
}

func TestToken_ExpiredAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		token  *Token
		margin time.Duration
		want   bool
	}{
		{"nil token", nil, 0, true},
		{"empty access token", &Token{Expiry: now.Add(time.Hour)}, 0, true},
		{"no declared expiry", &Token{AccessToken: "a"}, time.Minute, true},
		{"no declared expiry without margin", &Token{AccessToken: "a"}, -1, true},
		{"valid", &Token{AccessToken: "a", Expiry: now.Add(time.Hour)}, 0, false},
		{"exactly at expiry", &Token{AccessToken: "a", Expiry: now}, 0, true},
		{"past expiry", &Token{AccessToken: "a", Expiry: now.Add(-time.Second)}, 0, true},
		{"inside margin", &Token{AccessToken: "a", Expiry: now.Add(10 * time.Second)}, 30 * time.Second, true},
		{"outside margin", &Token{AccessToken: "a", Expiry: now.Add(time.Minute)}, 30 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.ExpiredAt(now, tt.margin))
		})
	}
}

type fullname string

func (f fullname) String() string { return "t3_" + string(f) }

func TestQuery_Values(t *testing.T) {
	q := Query{
		"limit":  25,
		"sr":     "golang",
		"nsfw":   false,
		"score":  1.5,
		"count":  uint16(7),
		"id":     fullname("abc"),
		"offset": int64(-3),
	}

	values, err := q.Values()
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"limit":  {"25"},
		"sr":     {"golang"},
		"nsfw":   {"false"},
		"score":  {"1.5"},
		"count":  {"7"},
		"id":     {"t3_abc"},
		"offset": {"-3"},
	}, values)
}

func TestQuery_ValuesRejectsStructuredValues(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"slice", Query{"ids": []string{"a", "b"}}},
		{"map", Query{"nested": map[string]any{"a": 1}}},
		{"nil", Query{"missing": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.query.Values()
			var cfgErr *pkgerrs.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "query", cfgErr.Field)
		})
	}
}

func TestQuery_NilIsEmpty(t *testing.T) {
	var q Query
	values, err := q.Values()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestPayload_Form(t *testing.T) {
	values, err := Payload{"thing_id": "t3_abc", "dir": 1}.Form()
	require.NoError(t, err)
	assert.Equal(t, "t3_abc", values.Get("thing_id"))
	assert.Equal(t, "1", values.Get("dir"))

	_, err = Payload{"richtext": []any{"a"}}.Form()
	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "payload", cfgErr.Field)
}

func TestPayload_JSON(t *testing.T) {
	data, err := Payload{"text": "hi", "flair": map[string]any{"id": 3}}.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi","flair":{"id":3}}`, string(data))

	data, err = Payload(nil).JSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = Payload{"bad": make(chan int)}.JSON()
	var cfgErr *pkgerrs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPayload_WithCopies(t *testing.T) {
	original := Payload{"text": "hi"}
	out := original.With("api_type", "json")

	assert.Equal(t, "json", out["api_type"])
	_, leaked := original["api_type"]
	assert.False(t, leaked, "With must not mutate the receiver")

	var raw map[string]any
	data, err := out.JSON()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 2)
}
