package cli

import "errors"

// Sentinel errors for CLI validation and the authorize flow.
var (
	ErrCredentialsMissing  = errors.New("REDDIT_CLIENT_ID is not set")
	ErrInvalidQuery        = errors.New("invalid query parameter, expected key=value")
	ErrInvalidRedirect     = errors.New("redirect URI must be an http URL on localhost with a port")
	ErrStateMismatch       = errors.New("state returned by Reddit does not match the one sent")
	ErrAuthorizationDenied = errors.New("authorization was not granted")
	ErrCallbackTimeout     = errors.New("timed out waiting for the authorization callback")
	ErrInvalidInterval     = errors.New("interval must be positive")
)
