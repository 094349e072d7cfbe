package internal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		want        string
		wantMessage string
		wantDesc    string
	}{
		{
			name: "plain object passes through",
			body: `{"kind":"t5","data":{"display_name":"golang"}}`,
			want: `{"kind":"t5","data":{"display_name":"golang"}}`,
		},
		{
			name: "listing array passes through",
			body: `[{"kind":"Listing"},{"kind":"Listing"}]`,
			want: `[{"kind":"Listing"},{"kind":"Listing"}]`,
		},
		{
			name: "wrapper with empty errors yields data",
			body: `{"json":{"errors":[],"data":{"id":"abc","name":"t3_abc"}}}`,
			want: `{"id":"abc","name":"t3_abc"}`,
		},
		{
			name: "wrapper without data yields null",
			body: `{"json":{"errors":[]}}`,
			want: `null`,
		},
		{
			name:        "wrapper error list fails on first entry",
			body:        `{"json":{"errors":[["RATELIMIT","you are doing that too much","ratelimit"],["SECOND","ignored",null]]}}`,
			wantMessage: `["RATELIMIT","you are doing that too much","ratelimit"]`,
		},
		{
			name:        "wrapper error as plain string",
			body:        `{"json":{"errors":["SUBREDDIT_NOEXIST"],"data":{}}}`,
			wantMessage: "SUBREDDIT_NOEXIST",
		},
		{
			name:        "top-level error with description",
			body:        `{"error":"invalid_grant","error_description":"bad refresh token"}`,
			wantMessage: "invalid_grant",
			wantDesc:    "bad refresh token",
		},
		{
			name:        "top-level numeric error falls back to message",
			body:        `{"message":"Forbidden","error":403}`,
			wantMessage: "403",
			wantDesc:    "Forbidden",
		},
		{
			name: "null error is not an error",
			body: `{"error":null,"value":1}`,
			want: `{"error":null,"value":1}`,
		},
		{
			name: "json key that is not a wrapper passes through",
			body: `{"json":"just a field"}`,
			want: `{"json":"just a field"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got json.RawMessage
			err := Unwrap([]byte(tt.body), &got)

			if tt.wantMessage != "" {
				var apiErr *pkgerrs.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantMessage, apiErr.Message)
				assert.Equal(t, tt.wantDesc, apiErr.Description)
				return
			}

			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestUnwrap_ErrorText(t *testing.T) {
	err := Unwrap([]byte(`{"error":"invalid_grant","error_description":"expired"}`), nil)
	require.Error(t, err)
	assert.Equal(t, "Reddit returned an error: invalid_grant: expired", err.Error())

	err = Unwrap([]byte(`{"error":"invalid_grant"}`), nil)
	require.Error(t, err)
	assert.Equal(t, "Reddit returned an error: invalid_grant", err.Error())
}

func TestUnwrap_DecodesIntoStruct(t *testing.T) {
	var thing struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	err := Unwrap([]byte(`{"json":{"errors":[],"data":{"id":"abc","name":"t3_abc"}}}`), &thing)
	require.NoError(t, err)
	assert.Equal(t, "abc", thing.ID)
	assert.Equal(t, "t3_abc", thing.Name)
}

func TestUnwrap_EmptyAndNil(t *testing.T) {
	var got map[string]any
	assert.NoError(t, Unwrap(nil, &got))
	assert.NoError(t, Unwrap([]byte("  \n"), &got))
	assert.Nil(t, got)

	assert.NoError(t, Unwrap([]byte(`{"ok":true}`), nil))
}

func TestUnwrap_MalformedBody(t *testing.T) {
	var got map[string]any
	err := Unwrap([]byte(`{"kind":`), &got)
	var transportErr *pkgerrs.TransportError
	assert.ErrorAs(t, err, &transportErr)

	err = Unwrap([]byte(`{"count":"seven"}`), &struct {
		Count int `json:"count"`
	}{})
	assert.ErrorAs(t, err, &transportErr)
}
