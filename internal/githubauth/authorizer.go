package githubauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v29/github"
	"github.com/google/uuid"
)

var (
	// ErrBadCredentials is returned when GitHub rejects the username or password.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrTwoFactorRequired is returned when the account requires a one-time password.
	ErrTwoFactorRequired = errors.New("two-factor authentication code required")
	// ErrEmptyGrant is returned when GitHub answers without a token or id.
	ErrEmptyGrant = errors.New("authorization response has no token")
)

// Credentials are the user's GitHub login.
type Credentials struct {
	Username string
	Password string
}

// Request describes the authorization to create.
type Request struct {
	Scopes  []string
	Note    string
	NoteURL string
}

// Grant is a created authorization: the bearer token and the id of the grant.
type Grant struct {
	Token string
	ID    string
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithBaseURL points the authorizer at a GitHub Enterprise server.
// The /api/v3/ suffix is added when missing.
func WithBaseURL(baseURL string) Option {
	return func(a *Authorizer) {
		a.baseURL = baseURL
	}
}

// WithTransport sets the base transport used beneath basic authentication.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(a *Authorizer) {
		a.transport = transport
	}
}

// WithTimeout bounds each authorization request.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Authorizer) {
		a.timeout = timeout
	}
}

// Authorizer creates GitHub authorizations with basic authentication.
type Authorizer struct {
	baseURL     string
	transport   http.RoundTripper
	timeout     time.Duration
	fingerprint func() string
}

// New creates an Authorizer for github.com unless WithBaseURL is given.
func New(opts ...Option) *Authorizer {
	a := &Authorizer{
		transport:   http.DefaultTransport,
		timeout:     30 * time.Second,
		fingerprint: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Authorizer) client(creds Credentials) (*github.Client, error) {
	tp := &github.BasicAuthTransport{
		Username:  creds.Username,
		Password:  creds.Password,
		Transport: a.transport,
	}
	httpClient := tp.Client()
	httpClient.Timeout = a.timeout

	if a.baseURL == "" {
		return github.NewClient(httpClient), nil
	}
	client, err := github.NewEnterpriseClient(a.baseURL, a.baseURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
	}
	return client, nil
}

// Authorize creates a new authorization for the user and returns its token and id.
func (a *Authorizer) Authorize(ctx context.Context, creds Credentials, req Request) (Grant, error) {
	if creds.Username == "" || creds.Password == "" {
		return Grant{}, ErrBadCredentials
	}

	client, err := a.client(creds)
	if err != nil {
		return Grant{}, err
	}

	scopes := make([]github.Scope, 0, len(req.Scopes))
	for _, s := range req.Scopes {
		scopes = append(scopes, github.Scope(s))
	}

	authReq := &github.AuthorizationRequest{
		Scopes:      scopes,
		Note:        github.String(req.Note),
		Fingerprint: github.String(a.fingerprint()),
	}
	if req.NoteURL != "" {
		authReq.NoteURL = github.String(req.NoteURL)
	}

	slog.DebugContext(ctx, "creating github authorization", "user", creds.Username, "scopes", req.Scopes, "note", req.Note)

	auth, _, err := client.Authorizations.Create(ctx, authReq)
	if err != nil {
		return Grant{}, classify(err)
	}

	if auth.GetToken() == "" || auth.GetID() == 0 {
		return Grant{}, ErrEmptyGrant
	}

	slog.DebugContext(ctx, "github authorization created", "authorization_id", auth.GetID())

	return Grant{
		Token: auth.GetToken(),
		ID:    strconv.FormatInt(auth.GetID(), 10),
	}, nil
}

// classify maps go-github errors onto the package's sentinel errors.
func classify(err error) error {
	var otpErr *github.TwoFactorAuthError
	if errors.As(err, &otpErr) {
		return fmt.Errorf("%w: %s", ErrTwoFactorRequired, otpErr.Message)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrBadCredentials, respErr.Message)
		}
	}

	return fmt.Errorf("creating authorization: %w", err)
}
