package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
)

func TestIsValidScope(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"identity", "identity", true},
		{"read", "read", true},
		{"wildcard", "*", true},
		{"uppercase", "Read", false},
		{"with space", "read write", false},
		{"with comma", "read,write", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidScope(tt.input))
		})
	}
}

func TestIsValidPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"leading slash", "/api/v1/me", true},
		{"relative", "r/golang/hot", true},
		{"with suffix", "r/golang/about.json", true},
		{"multireddit", "r/golang+rust/new", true},
		{"comma joined fullnames", "/by_id/t3_abc,t3_def", true},
		{"comment permalink", "r/golang/comments/abc123/some_title/", true},
		{"percent encoded", "user/some%20one/about", true},
		{"absolute url", "http://evil.example.com/x", false},
		{"scheme only", "javascript:alert(1)", false},
		{"backslash", `\\evil.example.com\x`, false},
		{"nested traversal", "api/../../secret", false},
		{"control character", "api/v1/me\n", false},
		{"empty", "", false},
		{"query string", "api/info?id=t3_x", false},
		{"fragment", "api/info#x", false},
		{"parent traversal", "../secret", false},
		{"scheme relative", "//evil.example.com/x", false},
		{"whitespace", "r/golang hot", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidPath(tt.input))
		})
	}
}

func TestValidateUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		wantErr bool
	}{
		{"descriptive", "linux:graw-session:v0.1.0 (by /u/someone)", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", strings.Repeat("a", maxUserAgentLength+1), true},
		{"newline injection", "app/1.0\r\nX-Evil: 1", true},
		{"go default", "Go-http-client/1.1", true},
		{"curl", "curl/8.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserAgent(tt.ua)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *pkgerrs.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "UserAgent", cfgErr.Field)
		})
	}
}

func TestValidateScopes(t *testing.T) {
	assert.NoError(t, ValidateScopes([]string{"identity", "read"}))

	err := ValidateScopes(nil)
	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "scopes", cfgErr.Field)

	err = ValidateScopes([]string{"identity", "Bad Scope", "read", ""})
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, `scope 1 has invalid format: "Bad Scope"`)
	assert.Contains(t, cfgErr.Message, `scope 3 has invalid format: ""`)
}

func TestValidateRedirectURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"https", "https://cb", false},
		{"localhost with port", "http://localhost:8080/callback", false},
		{"empty", "", true},
		{"relative", "/callback", true},
		{"custom scheme", "myapp://callback", true},
		{"unparseable", "http://[::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRedirectURI(tt.uri)
			if tt.wantErr {
				var cfgErr *pkgerrs.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	assert.NoError(t, ValidateBaseURL("BaseURL", "https://oauth.reddit.com/"))
	assert.NoError(t, ValidateBaseURL("BaseURL", "http://127.0.0.1:4000"))

	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, ValidateBaseURL("AuthURL", "www.reddit.com"), &cfgErr)
	assert.Equal(t, "AuthURL", cfgErr.Field)
	assert.Error(t, ValidateBaseURL("AuthURL", "::invalid-url"))
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("/api/v1/me"))

	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, ValidatePath("https://evil.example.com/x?y"), &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
}
