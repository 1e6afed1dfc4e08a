package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/florianilch/pipeline-auth/internal/auth"
	"github.com/florianilch/pipeline-auth/internal/console"
	"github.com/florianilch/pipeline-auth/internal/githubauth"
	"github.com/florianilch/pipeline-auth/internal/hostauth"
	"github.com/florianilch/pipeline-auth/internal/prompt"
	"github.com/florianilch/pipeline-auth/internal/tokenstore"
)

// App wires configuration to the authenticator and its collaborators.
type App struct {
	cfg   *Config
	store tokenstore.TokenStore
	auth  *auth.Authenticator
}

// Option configures an App.
type Option func(*options)

type options struct {
	in      io.Reader
	out     io.Writer
	store   tokenstore.TokenStore
	noColor bool
	github  []githubauth.Option
}

// WithIO sets where credentials are read from and where prompts and console
// messages go. Defaults to stdin and stderr.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
	}
}

// WithTokenStore overrides the store built from the storage configuration.
func WithTokenStore(store tokenstore.TokenStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithoutColor disables colored console output.
func WithoutColor() Option {
	return func(o *options) {
		o.noColor = true
	}
}

// WithGitHubOptions passes extra options to the GitHub authorizer.
func WithGitHubOptions(opts ...githubauth.Option) Option {
	return func(o *options) {
		o.github = append(o.github, opts...)
	}
}

// New creates a new App instance. No network or credential I/O is performed
// until a token is requested.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{in: os.Stdin, out: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = cfg.Storage.NewTokenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to create token store: %w", err)
		}
	}

	githubOpts := []githubauth.Option{githubauth.WithTimeout(cfg.Host.Timeout)}
	if cfg.GitHub.BaseURL != "" {
		githubOpts = append(githubOpts, githubauth.WithBaseURL(cfg.GitHub.BaseURL))
	}
	githubOpts = append(githubOpts, o.github...)

	host, err := hostauth.New(cfg.Host.URL,
		hostauth.WithAuthURI(cfg.Host.AuthURI),
		hostauth.WithHTTPClient(&http.Client{Timeout: cfg.Host.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create host client: %w", err)
	}

	var consoleOpts []console.Option
	if o.noColor {
		consoleOpts = append(consoleOpts, console.WithoutColor())
	}

	authOpts := []auth.Option{
		auth.WithHostURL(cfg.Host.URL),
		auth.WithNote(cfg.GitHub.Note),
		auth.WithScopes(cfg.GitHub.Scopes),
		auth.WithRevokeURL(cfg.RevokeURL()),
	}
	// Only the file backend is shared between processes through the filesystem
	if _, ok := store.(*tokenstore.FileStore); ok && cfg.Storage.Type == TokenStorageTypeFile {
		authOpts = append(authOpts, auth.WithLocker(tokenstore.NewDirLock(cfg.Storage.Dir)))
	}

	authenticator, err := auth.New(
		store,
		githubauth.New(githubOpts...),
		host,
		prompt.New(o.in, o.out),
		console.New(o.out, consoleOpts...),
		authOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	return &App{
		cfg:   cfg,
		store: store,
		auth:  authenticator,
	}, nil
}

// Token returns the host token, logging in first if necessary.
func (a *App) Token(ctx context.Context) (string, error) {
	slog.DebugContext(ctx, "requesting host token", "host", a.cfg.Host.URL, "storage", a.cfg.Storage.Type)
	return a.auth.Token(ctx)
}

// GitHubToken returns the GitHub token, logging in first if necessary.
func (a *App) GitHubToken(ctx context.Context) (string, error) {
	slog.DebugContext(ctx, "requesting github token", "storage", a.cfg.Storage.Type)
	return a.auth.GitHubToken(ctx)
}

// Reset removes all cached tokens.
func (a *App) Reset(ctx context.Context) error {
	return a.auth.Reset(ctx)
}

// SlotStatus describes one cached token.
type SlotStatus struct {
	Name     string
	Cached   bool
	Location string
}

// Status reports which tokens are cached and where.
func (a *App) Status(ctx context.Context) ([]SlotStatus, error) {
	state, err := a.auth.State(ctx)
	if err != nil {
		return nil, err
	}
	return []SlotStatus{
		{Name: "github", Cached: state.GitHub, Location: a.store.Location(tokenstore.KeyGitHub)},
		{Name: "host", Cached: state.Host, Location: a.store.Location(tokenstore.KeyHost)},
	}, nil
}
