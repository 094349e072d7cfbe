package cli

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/types"
	"github.com/jamesprial/go-reddit-session/test_helpers"
)

// scriptedGetter returns the scripted errors in order, then succeeds.
type scriptedGetter struct {
	errs  []error
	calls int
}

func (g *scriptedGetter) Get(_ context.Context, _ string, _ types.Encoder, v any) error {
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *scriptedGetter) RateLimit() (types.RateLimit, bool) {
	return types.RateLimit{Remaining: 10, Reset: time.Unix(0, 0)}, true
}

func TestPollCmd_Count(t *testing.T) {
	env := newTestEnv(t)
	env.fake.OAuth.SetResponse("/r/golang/new", &test_helpers.MockResponse{
		Status:  http.StatusOK,
		Body:    `{"kind":"Listing"}`,
		Headers: test_helpers.RateLimitHeaders(597, 300),
	})

	err := execute(t, PollCmd(env.Env), "r/golang/new", "--interval", "5ms", "--count", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(env.stdout.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Contains(t, line, "remaining=597")
	}
	assert.Equal(t, 3, env.fake.OAuth.GetCallCount("/r/golang/new"))
	assert.Equal(t, 1, env.fake.Tokens.GrantCount())
}

func TestPollCmd_ServesMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.fake.OAuth.SetResponse("/api/v1/me", &test_helpers.MockResponse{Status: http.StatusOK, Body: `{}`})
	addr := freeAddr(t)

	err := execute(t, PollCmd(env.Env), "api/v1/me", "--interval", "5ms", "--count", "2", "--metrics-addr", addr)
	require.NoError(t, err)
	assert.Contains(t, env.stderr.String(), "serving metrics on http://"+addr+"/metrics")
}

func TestPollCmd_InvalidInterval(t *testing.T) {
	env := newTestEnv(t)
	err := execute(t, PollCmd(env.Env), "api/v1/me", "--interval", "0s")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestPollLoop_ContinuesOnAPIError(t *testing.T) {
	env := newTestEnv(t)
	g := &scriptedGetter{errs: []error{&pkgerrs.APIError{StatusCode: 503, Message: "503"}}}

	err := pollLoop(context.Background(), env.Env, g, pollOptions{path: "x", interval: time.Millisecond, count: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, g.calls)

	out := env.stdout.String()
	assert.Contains(t, out, `1 error="Reddit returned an error: 503"`)
	assert.Contains(t, out, "3 bytes=0")
}

func TestPollLoop_StopsOnAuthError(t *testing.T) {
	env := newTestEnv(t)
	authErr := &pkgerrs.AuthError{Grant: "refresh_token", Message: "invalid_grant"}
	g := &scriptedGetter{errs: []error{nil, authErr}}

	err := pollLoop(context.Background(), env.Env, g, pollOptions{path: "x", interval: time.Millisecond, count: 5})
	assert.ErrorIs(t, err, authErr)
	assert.Equal(t, 2, g.calls)
}

func TestPollLoop_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pollLoop(ctx, env.Env, &scriptedGetter{}, pollOptions{path: "x", interval: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
}
