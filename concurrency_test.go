package graw

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jamesprial/go-reddit-session/pkg/types"
	"github.com/jamesprial/go-reddit-session/test_helpers"
)

func TestConcurrentRequestsShareOneGrant(t *testing.T) {
	fake := newFakeReddit(t)
	fake.Tokens.Delay = 50 * time.Millisecond
	fake.OAuth.SetResponse("/r/golang/hot", &test_helpers.MockResponse{
		Status:  http.StatusOK,
		Body:    `{"kind":"Listing"}`,
		Headers: test_helpers.RateLimitHeaders(500, 300),
	})

	clock := &testClock{now: time.Now()}
	cfg := testConfig(fake)
	cfg.Now = clock.Now
	client, err := NewClient(cfg)
	require.NoError(t, err)

	run := func(n int) {
		g, ctx := errgroup.WithContext(context.Background())
		for i := 0; i < n; i++ {
			g.Go(func() error {
				return client.Get(ctx, "r/golang/hot", nil, nil)
			})
		}
		require.NoError(t, g.Wait())
	}

	run(50)
	assert.Equal(t, 1, fake.Tokens.GrantCount())
	assert.Equal(t, 50, fake.OAuth.GetCallCount("/r/golang/hot"))

	// All callers find the token stale at once; still one exchange.
	clock.Advance(2 * time.Hour)
	run(50)
	assert.Equal(t, 2, fake.Tokens.GrantCount())

	rl, ok := client.RateLimit()
	require.True(t, ok)
	assert.Equal(t, 500, rl.Remaining)
}

func TestConcurrentReAuthorize(t *testing.T) {
	fake := newFakeReddit(t)
	fake.Tokens.AddUser("alice", "hunter2")
	fake.Tokens.AddUser("bob", "swordfish")
	fake.OAuth.SetResponse("/api/v1/me", &test_helpers.MockResponse{Status: http.StatusOK, Body: `{}`})

	cfg := testConfig(fake)
	cfg.Auth = types.PasswordAuth{Username: "alice", Password: "hunter2"}
	client, err := NewClient(cfg)
	require.NoError(t, err)

	users := []types.PasswordAuth{
		{Username: "alice", Password: "hunter2"},
		{Username: "bob", Password: "swordfish"},
	}

	g := new(errgroup.Group)
	for i := 0; i < 20; i++ {
		i := i
		g.Go(func() error {
			return client.Get(context.Background(), "api/v1/me", nil, nil)
		})
		g.Go(func() error {
			return client.ReAuthorize(users[i%2])
		})
		g.Go(func() error {
			client.RefreshToken()
			client.RateLimit()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// The session settles on the last descriptor for subsequent calls.
	require.NoError(t, client.ReAuthorize(users[1]))
	require.NoError(t, client.Get(context.Background(), "api/v1/me", nil, nil))

	grants := fake.Tokens.Grants()
	require.NotEmpty(t, grants)
	assert.Equal(t, "bob", grants[len(grants)-1].Username)
}
