package identity

import "errors"

// Service errors. Handlers map these to HTTP statuses; the messages are part
// of the API contract. ErrInvalidCredentials deliberately covers both an
// unknown email and a wrong password so that login failures do not reveal
// whether an account exists.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)
