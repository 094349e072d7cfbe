package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jamesprial/go-reddit-session/internal/config"
	"github.com/jamesprial/go-reddit-session/test_helpers"
)

const (
	testClientID     = "test_client_id"
	testClientSecret = "test_client_secret"
	testUserAgent    = "test:graw-session-cli:v0 (by /u/tester)"
)

// syncBuffer is a thread-safe bytes.Buffer for concurrent test output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)

type testEnv struct {
	*Env
	stdout *syncBuffer
	stderr *syncBuffer
	fake   *test_helpers.FakeReddit
}

// newTestEnv wires an Env to a fake Reddit with app credentials.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := test_helpers.NewFakeReddit(testClientID, testClientSecret)
	t.Cleanup(fake.Close)

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	settings := &config.Settings{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		UserAgent:    testUserAgent,
		RedirectURI:  config.DefaultRedirectURI,
		BaseURL:      fake.OAuth.URL(),
		AuthURL:      fake.Public.URL(),
		HTTPTimeout:  config.DefaultHTTPTimeout,
	}

	env := NewEnv(
		WithStdout(stdout),
		WithStderr(stderr),
		WithSettings(settings),
		WithLogger(zap.NewNop()),
	)
	return &testEnv{Env: env, stdout: stdout, stderr: stderr, fake: fake}
}

// execute runs cmd with args the way the root command would.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

// freeAddr returns a loopback address nothing is listening on.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}
