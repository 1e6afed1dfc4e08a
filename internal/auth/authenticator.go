package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/pipeline-auth/internal/githubauth"
	"github.com/florianilch/pipeline-auth/internal/tokenstore"
)

// Defaults applied when no option overrides them.
const (
	DefaultNote      = "pipeline authenticator app"
	DefaultRevokeURL = "https://github.com/settings/applications"
)

// DefaultScopes are the GitHub scopes requested when none are configured.
var DefaultScopes = []string{"user"}

// GitHubAuthorizer creates a GitHub authorization from user credentials.
type GitHubAuthorizer interface {
	Authorize(ctx context.Context, creds githubauth.Credentials, req githubauth.Request) (githubauth.Grant, error)
}

// HostExchanger trades a GitHub token for a host application token.
type HostExchanger interface {
	Exchange(ctx context.Context, githubToken string) (string, error)
}

// Prompter asks the user for GitHub credentials.
type Prompter interface {
	Credentials(ctx context.Context) (githubauth.Credentials, error)
}

// Console shows status messages to the user.
type Console interface {
	Success(format string, args ...any)
	Warn(format string, args ...any)
}

// Locker guards the token store against concurrent processes.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// State reports which tokens are cached.
type State struct {
	GitHub bool
	Host   bool
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithNote sets the note attached to new GitHub authorizations.
func WithNote(note string) Option {
	return func(a *Authenticator) {
		if note != "" {
			a.note = note
		}
	}
}

// WithScopes sets the scopes requested for new GitHub authorizations.
func WithScopes(scopes []string) Option {
	return func(a *Authenticator) {
		if len(scopes) > 0 {
			a.scopes = scopes
		}
	}
}

// WithHostURL names the host application in GitHub authorizations and console messages.
func WithHostURL(hostURL string) Option {
	return func(a *Authenticator) {
		a.hostURL = hostURL
	}
}

// WithRevokeURL sets the page shown on Reset for revoking the GitHub grant.
func WithRevokeURL(revokeURL string) Option {
	return func(a *Authenticator) {
		if revokeURL != "" {
			a.revokeURL = revokeURL
		}
	}
}

// WithLocker serializes token acquisition and reset across processes.
func WithLocker(locker Locker) Option {
	return func(a *Authenticator) {
		a.locker = locker
	}
}

// Authenticator acquires and caches GitHub and host tokens.
type Authenticator struct {
	store    tokenstore.TokenStore
	github   GitHubAuthorizer
	host     HostExchanger
	prompter Prompter
	console  Console
	locker   Locker

	note      string
	scopes    []string
	hostURL   string
	revokeURL string
}

// New creates an Authenticator. No I/O is performed until a token is requested.
func New(store tokenstore.TokenStore, github GitHubAuthorizer, host HostExchanger, prompter Prompter, console Console, opts ...Option) (*Authenticator, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if github == nil {
		return nil, fmt.Errorf("missing github authorizer")
	}
	if host == nil {
		return nil, fmt.Errorf("missing host exchanger")
	}
	if prompter == nil {
		return nil, fmt.Errorf("missing credential prompter")
	}
	if console == nil {
		return nil, fmt.Errorf("missing console")
	}

	a := &Authenticator{
		store:     store,
		github:    github,
		host:      host,
		prompter:  prompter,
		console:   console,
		note:      DefaultNote,
		scopes:    DefaultScopes,
		revokeURL: DefaultRevokeURL,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

func (a *Authenticator) lock(ctx context.Context) (func(), error) {
	if a.locker == nil {
		return func() {}, nil
	}
	unlock, err := a.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlock(); err != nil {
			slog.WarnContext(ctx, "failed to release token store lock", "error", err)
		}
	}, nil
}

// GitHubToken returns the cached GitHub token, or prompts for credentials and
// creates a new authorization if none is cached.
func (a *Authenticator) GitHubToken(ctx context.Context) (string, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	return a.githubToken(ctx)
}

func (a *Authenticator) githubToken(ctx context.Context) (string, error) {
	rec, err := tokenstore.ReadGitHubRecord(ctx, a.store)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "using cached github token", "location", a.store.Location(tokenstore.KeyGitHub))
		return rec.Token, nil
	case !errors.Is(err, tokenstore.ErrNotFound):
		return "", fmt.Errorf("reading cached github token: %w", err)
	}

	creds, err := a.prompter.Credentials(ctx)
	if err != nil {
		return "", fmt.Errorf("prompting for github credentials: %w", err)
	}

	grant, err := a.github.Authorize(ctx, creds, githubauth.Request{
		Scopes:  a.scopes,
		Note:    a.note,
		NoteURL: a.hostURL,
	})
	if err != nil {
		return "", &AuthenticationError{Err: err}
	}
	if grant.Token == "" || grant.ID == "" {
		return "", &AuthenticationError{Err: githubauth.ErrEmptyGrant}
	}

	if err := tokenstore.WriteGitHubRecord(ctx, a.store, tokenstore.GitHubRecord{
		Token:           grant.Token,
		AuthorizationID: grant.ID,
	}); err != nil {
		return "", fmt.Errorf("storing github token: %w", err)
	}

	slog.InfoContext(ctx, "github authorization created", "authorization_id", grant.ID)
	a.console.Success("Successfully logged into Github. Stored auth token in\n%s for later use.", a.store.Location(tokenstore.KeyGitHub))

	return grant.Token, nil
}

// Token returns the cached host token. If none is cached it obtains a GitHub
// token (cached or fresh), exchanges it with the host and caches the result.
// Host failures are returned as *hostauth.RemoteAuthError or
// *hostauth.ProtocolError.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	rec, err := tokenstore.ReadHostRecord(ctx, a.store)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "using cached host token", "location", a.store.Location(tokenstore.KeyHost))
		return rec.Token, nil
	case !errors.Is(err, tokenstore.ErrNotFound):
		return "", fmt.Errorf("reading cached host token: %w", err)
	}

	githubToken, err := a.githubToken(ctx)
	if err != nil {
		return "", err
	}

	token, err := a.host.Exchange(ctx, githubToken)
	if err != nil {
		return "", err
	}

	if err := tokenstore.WriteHostRecord(ctx, a.store, tokenstore.HostRecord{Token: token}); err != nil {
		return "", fmt.Errorf("storing host token: %w", err)
	}

	slog.InfoContext(ctx, "host token issued", "host", a.hostURL)
	a.console.Success("Successfully logged into %s. Stored auth token in\n%s for later use.", a.hostName(), a.store.Location(tokenstore.KeyHost))

	return token, nil
}

func (a *Authenticator) hostName() string {
	if a.hostURL == "" {
		return "host"
	}
	return a.hostURL
}

// Reset deletes both cached tokens. Missing tokens are not an error. The
// GitHub authorization itself stays valid until the user revokes it, so the
// revocation advisory is shown even when a delete fails.
func (a *Authenticator) Reset(ctx context.Context) error {
	unlock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var errs []error
	for _, key := range tokenstore.Keys {
		if err := a.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s token: %w", key, err))
		}
	}

	a.console.Warn("Make sure to delete the pipeline token in Github at:\n%s", a.revokeURL)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.InfoContext(ctx, "cached tokens removed")
	a.console.Success("Tokens removed")

	return nil
}

// State reports which tokens are cached without contacting any server.
func (a *Authenticator) State(ctx context.Context) (State, error) {
	var state State
	for _, slot := range []struct {
		key     tokenstore.Key
		present *bool
	}{
		{tokenstore.KeyGitHub, &state.GitHub},
		{tokenstore.KeyHost, &state.Host},
	} {
		_, err := a.store.Read(ctx, slot.key)
		switch {
		case err == nil:
			*slot.present = true
		case !errors.Is(err, tokenstore.ErrNotFound):
			return State{}, fmt.Errorf("reading %s token: %w", slot.key, err)
		}
	}
	return state, nil
}
