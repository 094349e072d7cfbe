// Package test_helpers provides a fake Reddit for exercising the client end to end.
package test_helpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// TokenPath is where the fake serves the OAuth token endpoint.
const TokenPath = "/api/v1/access_token"

// MockServer provides a configurable mock Reddit host for testing
type MockServer struct {
	server *httptest.Server

	mu          sync.Mutex
	responses   map[string]*MockResponse
	defaultResp *MockResponse
	handlers    map[string]http.Handler
	requestLog  []RequestEntry
	callCount   map[string]int
}

// RequestEntry logs incoming requests for assertions
type RequestEntry struct {
	Method    string
	Path      string
	Query     url.Values
	Headers   http.Header
	Body      string
	Timestamp time.Time
}

// MockResponse defines a mock API response
type MockResponse struct {
	Status  int
	Body    string
	Headers map[string]string
	Delay   time.Duration
}

// NewMockServer creates a new mock server instance
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]*MockResponse),
		handlers:  make(map[string]http.Handler),
		callCount: make(map[string]int),
		defaultResp: &MockResponse{
			Status: http.StatusNotFound,
			Body:   `{"message": "Not Found", "error": 404}`,
		},
	}
	ms.server = httptest.NewServer(ms)
	return ms
}

// URL returns the base URL of the mock server
func (ms *MockServer) URL() string {
	return ms.server.URL + "/"
}

// Close shuts down the mock server
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse configures a response for a specific path
func (ms *MockServer) SetResponse(path string, response *MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// SetDefaultResponse configures the response for unknown paths
func (ms *MockServer) SetDefaultResponse(response *MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.defaultResp = response
}

// Handle routes a path to a custom handler
func (ms *MockServer) Handle(path string, h http.Handler) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers[path] = h
}

// GetRequestLog returns a copy of the request log
func (ms *MockServer) GetRequestLog() []RequestEntry {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RequestEntry{}, ms.requestLog...)
}

// GetCallCount returns the call count for a path
func (ms *MockServer) GetCallCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.callCount[path]
}

// GetLastRequest returns the most recent request for a path
func (ms *MockServer) GetLastRequest(path string) (*RequestEntry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := len(ms.requestLog) - 1; i >= 0; i-- {
		if ms.requestLog[i].Path == path {
			entry := ms.requestLog[i]
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("no requests found for path: %s", path)
}

// ClearLog clears the request log and call counts
func (ms *MockServer) ClearLog() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.requestLog = ms.requestLog[:0]
	ms.callCount = make(map[string]int)
}

// ServeHTTP implements http.Handler
func (ms *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	ms.mu.Lock()
	ms.callCount[r.URL.Path]++
	ms.requestLog = append(ms.requestLog, RequestEntry{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Headers:   r.Header.Clone(),
		Body:      string(body),
		Timestamp: time.Now(),
	})
	handler, hasHandler := ms.handlers[r.URL.Path]
	response, exists := ms.responses[r.URL.Path]
	if !exists {
		response = ms.defaultResp
	}
	ms.mu.Unlock()

	if hasHandler {
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler.ServeHTTP(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}

	w.Header().Set("Content-Type", "application/json")
	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(response.Status)
	_, _ = w.Write([]byte(response.Body))
}

// GrantRecord captures one call to the token endpoint.
type GrantRecord struct {
	GrantType    string
	Username     string
	Password     string
	RefreshToken string
	Code         string
	RedirectURI  string
	UserAgent    string
}

// TokenEndpoint emulates Reddit's /api/v1/access_token.
type TokenEndpoint struct {
	ClientID     string
	ClientSecret string
	// ExpiresIn is the lifetime declared for issued tokens, in seconds.
	// Zero leaves expires_in out of the response.
	ExpiresIn int
	// Delay is applied before answering, to widen race windows in tests.
	Delay time.Duration

	mu            sync.Mutex
	users         map[string]string
	refreshTokens map[string]bool
	codes         map[string]codeGrant
	grants        []GrantRecord
	issued        int
}

type codeGrant struct {
	redirectURI string
	permanent   bool
}

// NewTokenEndpoint creates a token endpoint accepting the given app credentials.
func NewTokenEndpoint(clientID, clientSecret string) *TokenEndpoint {
	return &TokenEndpoint{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		ExpiresIn:     3600,
		users:         make(map[string]string),
		refreshTokens: make(map[string]bool),
		codes:         make(map[string]codeGrant),
	}
}

// AddUser registers a username/password pair for the password grant.
func (te *TokenEndpoint) AddUser(username, password string) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.users[username] = password
}

// AddRefreshToken registers a refresh token for the refresh_token grant.
func (te *TokenEndpoint) AddRefreshToken(token string) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.refreshTokens[token] = true
}

// RevokeRefreshToken makes a refresh token invalid.
func (te *TokenEndpoint) RevokeRefreshToken(token string) {
	te.mu.Lock()
	defer te.mu.Unlock()
	delete(te.refreshTokens, token)
}

// AddCode registers a single-use authorization code. permanent codes yield a refresh token.
func (te *TokenEndpoint) AddCode(code, redirectURI string, permanent bool) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.codes[code] = codeGrant{redirectURI: redirectURI, permanent: permanent}
}

// Grants returns every grant request received so far.
func (te *TokenEndpoint) Grants() []GrantRecord {
	te.mu.Lock()
	defer te.mu.Unlock()
	return append([]GrantRecord{}, te.grants...)
}

// GrantCount returns how many grant requests were received.
func (te *TokenEndpoint) GrantCount() int {
	te.mu.Lock()
	defer te.mu.Unlock()
	return len(te.grants)
}

// ServeHTTP implements http.Handler
func (te *TokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"message": "Method Not Allowed", "error": 405})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}

	record := GrantRecord{
		GrantType:    r.PostForm.Get("grant_type"),
		Username:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		UserAgent:    r.UserAgent(),
	}

	te.mu.Lock()
	te.grants = append(te.grants, record)
	te.mu.Unlock()

	if te.Delay > 0 {
		time.Sleep(te.Delay)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != te.ClientID || pass != te.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized", "error": 401})
		return
	}

	var refreshToken string
	switch record.GrantType {
	case "client_credentials":
	case "password":
		if want, ok := te.users[record.Username]; !ok || want != record.Password {
			// Reddit answers a bad password with 200 and an error body.
			writeJSON(w, http.StatusOK, map[string]any{"error": "invalid_grant"})
			return
		}
	case "refresh_token":
		if !te.refreshTokens[record.RefreshToken] {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			return
		}
	case "authorization_code":
		grant, ok := te.codes[record.Code]
		if !ok || grant.redirectURI != record.RedirectURI {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			return
		}
		delete(te.codes, record.Code)
		if grant.permanent {
			refreshToken = "refresh-" + record.Code
			te.refreshTokens[refreshToken] = true
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
		return
	}

	te.issued++
	resp := map[string]any{
		"access_token": "access-" + strconv.Itoa(te.issued),
		"token_type":   "bearer",
		"scope":        "*",
	}
	if te.ExpiresIn > 0 {
		resp["expires_in"] = te.ExpiresIn
	}
	if refreshToken != "" {
		resp["refresh_token"] = refreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

// FakeReddit bundles a public host (with the token endpoint) and an OAuth host.
type FakeReddit struct {
	Public *MockServer
	OAuth  *MockServer
	Tokens *TokenEndpoint
}

// NewFakeReddit starts both hosts. Close it when done.
func NewFakeReddit(clientID, clientSecret string) *FakeReddit {
	fr := &FakeReddit{
		Public: NewMockServer(),
		OAuth:  NewMockServer(),
		Tokens: NewTokenEndpoint(clientID, clientSecret),
	}
	fr.Public.Handle(TokenPath, fr.Tokens)
	return fr
}

// Close shuts down both hosts.
func (fr *FakeReddit) Close() {
	fr.Public.Close()
	fr.OAuth.Close()
}

// RateLimitHeaders returns Reddit-style rate-limit headers.
func RateLimitHeaders(remaining float64, resetSeconds int) map[string]string {
	return map[string]string{
		"X-Ratelimit-Remaining": strconv.FormatFloat(remaining, 'f', 1, 64),
		"X-Ratelimit-Used":      "1",
		"X-Ratelimit-Reset":     strconv.Itoa(resetSeconds),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
