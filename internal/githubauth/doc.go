// Package githubauth creates GitHub personal access tokens from a username
// and password using the GitHub authorizations API.
//
// Each authorization carries a note and a note URL naming the application it
// was created for, plus a random fingerprint so that repeated logins with the
// same note create distinct grants.
//
//	a := githubauth.New(githubauth.WithBaseURL("https://ghe.example.com"))
//	grant, err := a.Authorize(ctx, creds, githubauth.Request{Scopes: []string{"user"}, Note: "my app"})
//
// Rejected credentials are reported as ErrBadCredentials, accounts requiring a
// one-time password as ErrTwoFactorRequired. Neither is retried.
package githubauth
