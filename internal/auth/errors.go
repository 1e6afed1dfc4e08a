package auth

// AuthenticationError reports that GitHub did not issue a token: the
// credentials were rejected or the authorization request failed.
// Nothing is cached when it is returned.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return "Github login failed"
	}
	return "Github login failed: " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
