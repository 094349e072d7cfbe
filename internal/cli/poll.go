package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/metrics"
	"github.com/jamesprial/go-reddit-session/pkg/types"
)

// pollOptions holds validated options for the poll command.
type pollOptions struct {
	path        string
	query       types.Encoder
	interval    time.Duration
	count       int
	metricsAddr string
}

// PollCmd creates the poll command.
func PollCmd(env *Env) *cobra.Command {
	var (
		queryArgs   []string
		interval    time.Duration
		count       int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "poll <path>",
		Short: "GET a path repeatedly and report the rate-limit state",
		Long: `GET a path repeatedly at a fixed pace and print one line per request
with the rate-limit snapshot Reddit reported.

Pacing is client-side; the session itself never waits on rate limits.
With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Example: `  graw poll r/golang/new --interval 2s --count 10
  graw poll api/v1/me --metrics-addr 127.0.0.1:9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return ErrInvalidInterval
			}
			query, err := parseQuery(queryArgs)
			if err != nil {
				return err
			}
			return runPoll(cmd.Context(), env, pollOptions{
				path:        args[0],
				query:       query,
				interval:    interval,
				count:       count,
				metricsAddr: metricsAddr,
			})
		},
	}

	cmd.Flags().StringArrayVarP(&queryArgs, "query", "q", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Time between requests")
	cmd.Flags().IntVar(&count, "count", 0, "Number of requests (0 polls until interrupted)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

func runPoll(ctx context.Context, env *Env, opts pollOptions) error {
	var rec metrics.Recorder
	var prom *metrics.Prometheus
	if opts.metricsAddr != "" {
		prom = metrics.NewPrometheus(nil)
		rec = prom
	}

	client, err := env.newClient(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if prom != nil {
		app := fiber.New(fiber.Config{DisableStartupMessage: true})
		app.Get("/metrics", adaptor.HTTPHandler(prom.Handler()))

		ln, err := net.Listen("tcp", opts.metricsAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", opts.metricsAddr, err)
		}
		fmt.Fprintf(env.Stderr, "serving metrics on http://%s/metrics\n", ln.Addr())

		g.Go(func() error {
			return app.Listener(ln)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := app.ShutdownWithContext(shutdownCtx)
			// Unblocks Listener if shutdown won the race against it.
			_ = ln.Close()
			return err
		})
	}

	g.Go(func() error {
		defer cancel()
		return pollLoop(ctx, env, client, opts)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// getter is the part of the client the poll loop needs.
type getter interface {
	Get(ctx context.Context, path string, query types.Encoder, v any) error
	RateLimit() (types.RateLimit, bool)
}

func pollLoop(ctx context.Context, env *Env, client getter, opts pollOptions) error {
	limiter := rate.NewLimiter(rate.Every(opts.interval), 1)

	for i := 0; opts.count == 0 || i < opts.count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		var raw json.RawMessage
		start := env.Now()
		err := client.Get(ctx, opts.path, opts.query, &raw)
		elapsed := env.Now().Sub(start)

		if err != nil {
			// Configuration and grant failures do not heal on their own.
			var cfgErr *pkgerrs.ConfigError
			var authErr *pkgerrs.AuthError
			if errors.As(err, &cfgErr) || errors.As(err, &authErr) || ctx.Err() != nil {
				return err
			}
			env.Logger.Warn("poll request failed", zap.String("path", opts.path), zap.Error(err))
			fmt.Fprintf(env.Stdout, "%d error=%q\n", i+1, err.Error())
			continue
		}

		line := fmt.Sprintf("%d bytes=%d elapsed=%s", i+1, len(raw), elapsed.Round(time.Millisecond))
		if rl, ok := client.RateLimit(); ok {
			line += fmt.Sprintf(" remaining=%d reset=%s", rl.Remaining, rl.Reset.Format(time.RFC3339))
		}
		fmt.Fprintln(env.Stdout, line)
	}
	return nil
}
