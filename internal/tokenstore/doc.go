// Package tokenstore provides persistent storage for the two cached tokens of
// the pipeline authenticator: the GitHub authorization grant and the token
// issued by the host application.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local directory holding gh_token and app_token, written atomically with secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Memory: Process-local storage, mainly for tests and dry runs
//
// Every backend returns only the first line of a record on Read. The GitHub
// record stores the authorization id on its second line, which is kept for
// manual revocation and is intentionally never read back.
package tokenstore
