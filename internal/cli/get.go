package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	graw "github.com/jamesprial/go-reddit-session"
	"github.com/jamesprial/go-reddit-session/pkg/types"
)

// maxParallelGets bounds concurrent requests when several paths are fetched.
const maxParallelGets = 4

// GetCmd creates the get command.
func GetCmd(env *Env) *cobra.Command {
	var queryArgs []string

	cmd := &cobra.Command{
		Use:   "get <path> [path...]",
		Short: "GET one or more API paths and print the JSON results",
		Long: `GET one or more API paths and print the unwrapped JSON results in order.

With REDDIT_CLIENT_ID set the OAuth host is used with a bearer token;
otherwise the public host is used anonymously. The last rate-limit
snapshot is printed on stderr.`,
		Example: `  graw get api/v1/me
  graw get r/golang/hot -q limit=5
  graw get r/golang/about r/rust/about`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(queryArgs)
			if err != nil {
				return err
			}

			client, err := env.newClient(nil)
			if err != nil {
				return err
			}

			results := make([]json.RawMessage, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(maxParallelGets)
			for i, path := range args {
				i, path := i, path
				g.Go(func() error {
					return client.Get(ctx, path, query, &results[i])
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for _, raw := range results {
				if err := writeJSON(env.Stdout, raw); err != nil {
					return err
				}
			}
			printRateLimit(env.Stderr, client)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&queryArgs, "query", "q", nil, "Query parameter as key=value (repeatable)")

	return cmd
}

// parseQuery turns key=value arguments into a query. nil when there are none.
func parseQuery(args []string) (types.Encoder, error) {
	if len(args) == 0 {
		return nil, nil
	}
	q := make(types.Query, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, arg)
		}
		q[key] = value
	}
	return q, nil
}

// writeJSON prints raw indented. An empty body prints as null.
func writeJSON(w io.Writer, raw json.RawMessage) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func printRateLimit(w io.Writer, client *graw.Client) {
	rl, ok := client.RateLimit()
	if !ok {
		return
	}
	fmt.Fprintf(w, "ratelimit: remaining=%d reset=%s\n", rl.Remaining, rl.Reset.Format(time.RFC3339))
}
