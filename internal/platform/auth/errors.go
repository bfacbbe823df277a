package auth

import "errors"

// Typed verification errors. Handlers map all of them to a generic 401 and
// never disclose which one occurred.
var (
	ErrTokenMissing = errors.New("token missing")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)
