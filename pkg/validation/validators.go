// Package validation checks caller-supplied values at the client boundary,
// before anything is sent to Reddit.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
)

const (
	// maxUserAgentLength mirrors the longest user agent Reddit accepts without truncation.
	maxUserAgentLength = 256
)

var (
	// scopeRegex matches Reddit OAuth scope names (e.g. "identity", "modconfig", "*")
	scopeRegex = regexp.MustCompile(`^(\*|[a-z]+)$`)

	// unsafePathRegex matches characters that would let a path leave the
	// configured host or carry its own query: schemes, query, fragment,
	// backslashes, whitespace and control characters.
	unsafePathRegex = regexp.MustCompile(`[:?#\\\s\x00-\x1f\x7f]`)

	// genericUserAgents are default agents of common HTTP stacks; Reddit throttles them aggressively.
	genericUserAgents = []string{
		"go-http-client",
		"curl/",
		"python-requests",
		"python-urllib",
		"okhttp",
		"java/",
	}
)

// IsValidScope checks if a string is a valid OAuth scope name
func IsValidScope(s string) bool {
	return scopeRegex.MatchString(s)
}

// IsValidPath checks if a string is a relative API path without query or fragment
func IsValidPath(s string) bool {
	if s == "" || strings.HasPrefix(s, "//") || unsafePathRegex.MatchString(s) {
		return false
	}
	for _, segment := range strings.Split(s, "/") {
		if segment == ".." {
			return false
		}
	}
	return true
}

// ValidateUserAgent rejects empty, oversized, and generic user agents.
func ValidateUserAgent(ua string) error {
	trimmed := strings.TrimSpace(ua)
	if trimmed == "" {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent is required by Reddit's API rules"}
	}
	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: fmt.Sprintf("user agent cannot exceed %d characters", maxUserAgentLength)}
	}
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent cannot contain line breaks"}
	}
	lower := strings.ToLower(trimmed)
	for _, generic := range genericUserAgents {
		if strings.HasPrefix(lower, generic) {
			return &pkgerrs.ConfigError{Field: "UserAgent", Message: fmt.Sprintf("user agent %q is too generic; use platform:app-id:version (by /u/username)", ua)}
		}
	}
	return nil
}

// ValidateScopes checks every scope name and rejects an empty list.
func ValidateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return &pkgerrs.ConfigError{Field: "scopes", Message: "at least one scope is required"}
	}

	var errs []error
	for i, s := range scopes {
		if !IsValidScope(s) {
			errs = append(errs, fmt.Errorf("scope %d has invalid format: %q", i, s))
		}
	}

	if len(errs) > 0 {
		return &pkgerrs.ConfigError{Field: "scopes", Message: errors.Join(errs...).Error()}
	}
	return nil
}

// ValidateRedirectURI requires an absolute http(s) URI, as registered with the app.
func ValidateRedirectURI(uri string) error {
	if uri == "" {
		return &pkgerrs.ConfigError{Field: "redirectURI", Message: "redirect URI cannot be empty"}
	}
	u, err := url.Parse(uri)
	if err != nil {
		return &pkgerrs.ConfigError{Field: "redirectURI", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &pkgerrs.ConfigError{Field: "redirectURI", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &pkgerrs.ConfigError{Field: "redirectURI", Message: "redirect URI must be absolute"}
	}
	return nil
}

// ValidatePath checks a request path before it is resolved against a host.
func ValidatePath(path string) error {
	if !IsValidPath(path) {
		return &pkgerrs.ConfigError{Field: "path", Message: fmt.Sprintf("invalid API path %q", path)}
	}
	return nil
}

// ValidateBaseURL requires an absolute http(s) URL for a configured host.
func ValidateBaseURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &pkgerrs.ConfigError{Field: field, Message: err.Error()}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("%q is not an absolute http(s) URL", raw)}
	}
	return nil
}
