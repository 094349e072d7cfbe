package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	graw "github.com/jamesprial/go-reddit-session"
	"github.com/jamesprial/go-reddit-session/internal/config"
)

const defaultCallbackTimeout = 5 * time.Minute

// authorizeOptions holds validated options for the authorize commands.
type authorizeOptions struct {
	scopes      []string
	redirectURI string
	state       string
	temporary   bool
	timeout     time.Duration
}

func (o authorizeOptions) urlOptions(s *config.Settings) []graw.AuthURLOption {
	opts := []graw.AuthURLOption{graw.WithState(o.state)}
	if o.temporary {
		opts = append(opts, graw.WithTemporary())
	}
	if s.AuthURL != "" {
		opts = append(opts, graw.WithAuthURL(s.AuthURL))
	}
	return opts
}

// AuthorizeURLCmd creates the authorize-url command, which only prints the
// URL a user visits to grant the app access.
func AuthorizeURLCmd(env *Env) *cobra.Command {
	var opts authorizeOptions

	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the Reddit authorization URL",
		Example: `  graw authorize-url --scope identity --scope read
  graw authorize-url --scope '*' --temporary --state xyz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.Settings.ClientID == "" {
				return ErrCredentialsMissing
			}
			if opts.redirectURI == "" {
				opts.redirectURI = env.Settings.RedirectURI
			}

			authURL, err := graw.BuildAuthorizationURL(env.Settings.ClientID, opts.scopes, opts.redirectURI, opts.urlOptions(env.Settings)...)
			if err != nil {
				return err
			}
			fmt.Fprintln(env.Stdout, authURL)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.scopes, "scope", []string{"identity"}, "OAuth scopes to request (repeatable)")
	cmd.Flags().StringVar(&opts.redirectURI, "redirect-uri", "", "Redirect URI registered with the app (default: $REDDIT_REDIRECT_URI)")
	cmd.Flags().StringVar(&opts.state, "state", graw.DefaultState, "CSRF state echoed back to the redirect URI")
	cmd.Flags().BoolVar(&opts.temporary, "temporary", false, "Request a one-hour grant without a refresh token")

	return cmd
}

// AuthorizeCmd creates the authorize command: it serves the redirect URI
// locally, waits for Reddit's callback, exchanges the code and prints the
// refresh token.
func AuthorizeCmd(env *Env) *cobra.Command {
	var opts authorizeOptions

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Run the OAuth code flow and print a refresh token",
		Long: `Run the OAuth authorization code flow against a local callback server.

The redirect URI must point at localhost and be registered with the app.
The printed refresh token can be saved as REDDIT_REFRESH_TOKEN.`,
		Example: `  graw authorize --scope identity --scope read
  graw authorize --redirect-uri http://127.0.0.1:65010/authorize_callback`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.Settings.ClientID == "" {
				return ErrCredentialsMissing
			}
			if opts.redirectURI == "" {
				opts.redirectURI = env.Settings.RedirectURI
			}
			opts.state = uuid.NewString()
			return runAuthorize(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.scopes, "scope", []string{"identity"}, "OAuth scopes to request (repeatable)")
	cmd.Flags().StringVar(&opts.redirectURI, "redirect-uri", "", "Local redirect URI registered with the app (default: $REDDIT_REDIRECT_URI)")
	cmd.Flags().BoolVar(&opts.temporary, "temporary", false, "Request a one-hour grant without a refresh token")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultCallbackTimeout, "How long to wait for the callback")

	return cmd
}

type callbackResult struct {
	state   string
	code    string
	errCode string
}

func runAuthorize(ctx context.Context, env *Env, opts authorizeOptions) error {
	redirect, err := url.Parse(opts.redirectURI)
	if err != nil || redirect.Scheme != "http" || redirect.Port() == "" || !isLoopback(redirect.Hostname()) {
		return fmt.Errorf("%w: %q", ErrInvalidRedirect, opts.redirectURI)
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	authURL, err := graw.BuildAuthorizationURL(env.Settings.ClientID, opts.scopes, opts.redirectURI, opts.urlOptions(env.Settings)...)
	if err != nil {
		return err
	}

	results := make(chan callbackResult, 1)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
	})
	app.Get(callbackPath, func(c *fiber.Ctx) error {
		res := callbackResult{
			state:   c.Query("state"),
			code:    c.Query("code"),
			errCode: c.Query("error"),
		}
		select {
		case results <- res:
		default:
		}
		if res.errCode != "" || res.code == "" {
			return c.Status(fiber.StatusBadRequest).SendString("Authorization failed. You can close this window.")
		}
		return c.SendString("Authorization received. You can close this window.")
	})

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", redirect.Host, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listener(ln)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			env.Logger.Warn("callback server shutdown failed", zap.Error(err))
		}
	}()

	fmt.Fprintln(env.Stderr, "Open this URL in a browser and approve access:")
	fmt.Fprintln(env.Stdout, authURL)
	if env.Browse != nil {
		if err := env.Browse(authURL); err != nil {
			env.Logger.Warn("could not open the authorization URL", zap.Error(err))
		}
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = defaultCallbackTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res callbackResult
	select {
	case res = <-results:
	case err := <-serveErr:
		return fmt.Errorf("callback server: %w", err)
	case <-timer.C:
		return ErrCallbackTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	if res.state != opts.state {
		return ErrStateMismatch
	}
	if res.errCode != "" {
		return fmt.Errorf("%w: %s", ErrAuthorizationDenied, res.errCode)
	}
	if res.code == "" {
		return fmt.Errorf("%w: callback carried no code", ErrAuthorizationDenied)
	}

	client, err := graw.FromAuthorizationCode(ctx, env.clientConfig(nil), res.code, opts.redirectURI)
	if err != nil {
		return err
	}

	refreshToken, ok := client.RefreshToken()
	if !ok {
		if opts.temporary {
			fmt.Fprintln(env.Stderr, "Temporary grants carry no refresh token.")
			return nil
		}
		return errors.New("reddit issued no refresh token")
	}
	fmt.Fprintf(env.Stdout, "%s=%s\n", config.EnvRefreshToken, refreshToken)
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
