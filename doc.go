// Package graw is the session core of a Go Reddit API wrapper: it issues
// anonymous and OAuth2-authenticated requests, keeps the session token fresh,
// and turns Reddit's two response conventions into one success/error result.
//
// # Overview
//
// Resource operations (posts, comments, subreddits, users) are built on three
// calls: Get, Post and PostJSON. Everything else in this package exists to make
// those three calls correct:
//
//   - token acquisition with the grant matching the configured user
//   - single-flight token refresh shared by concurrent goroutines
//   - rate-limit bookkeeping from Reddit's response headers
//   - unwrapping of the "json" result wrapper and top-level error objects
//
// # Quick Start
//
//	client, err := graw.NewClient(&graw.Config{
//		UserAgent:   "linux:myapp:v1.0 (by /u/yourusername)",
//		Credentials: &types.Credentials{ClientID: "id", ClientSecret: "secret"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	var about struct {
//		Data struct {
//			Subscribers int `json:"subscribers"`
//		} `json:"data"`
//	}
//	if err := client.Get(ctx, "r/golang/about", nil, &about); err != nil {
//		log.Fatal(err)
//	}
//
// # Routing
//
// The Credentials field alone decides where a call goes. With Credentials,
// every call uses the OAuth host (oauth.reddit.com) with a bearer token.
// Without them, every call uses the public host (www.reddit.com) with no
// Authorization header.
//
// # Authentication Types
//
// Application-only (types.AppOnlyAuth or a nil Auth):
//   - client_credentials grant
//   - read-only access to public data
//
// Script user (types.PasswordAuth):
//   - password grant for the app owner's own account
//
// Installed or web user (types.RefreshTokenAuth):
//   - refresh_token grant with a token from an earlier code exchange
//   - bootstrap with BuildAuthorizationURL and FromAuthorizationCode
//
// Tokens are not persisted. Save the value of Client.RefreshToken and pass it
// back as types.RefreshTokenAuth to resume a session after a restart.
//
// # Token Lifecycle
//
// The first authenticated call obtains a token. Later calls reuse it until it
// is within Config.TokenExpiryMargin of its expiry; then the next call
// refreshes it. When many goroutines find the token stale at once, exactly one
// grant exchange runs and the rest wait for its result. ReAuthorize swaps the
// user descriptor and drops the token; tokens from exchanges started before the
// swap are never installed.
//
// # Error Handling
//
// Errors are typed; use errors.As:
//
//	var apiErr *pkgerrs.APIError
//	if errors.As(err, &apiErr) {
//		// Reddit answered and said no: apiErr.Message, apiErr.Description
//	}
//
//   - *errors.ConfigError: bad configuration, or credentials missing for an operation
//   - *errors.AuthError: Reddit rejected a grant (bad password, revoked refresh token)
//   - *errors.APIError: "Reddit returned an error: <message>[: <description>]"
//   - *errors.TransportError: network failure or an undecodable body
//
// Nothing is retried. Rate limits are recorded (Client.RateLimit) but never
// enforced; pace requests yourself, for example with golang.org/x/time/rate.
//
// # Thread Safety
//
// A Client is safe for concurrent use by multiple goroutines.
package graw
