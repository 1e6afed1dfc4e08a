// Package auth implements the two-stage pipeline login.
//
// A user's GitHub credentials are exchanged once for a GitHub authorization
// token, which is then presented to the host application's auth endpoint.
// The host validates it against GitHub and issues its own token. Both tokens
// are cached in a tokenstore.TokenStore; later calls return the cached host
// token without touching the network.
//
// The Authenticator tracks two independent states, GitHub token absent or
// present and host token absent or present. Only Reset moves a token from
// present back to absent, and cached tokens are never re-validated.
package auth
