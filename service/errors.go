package service

import "errors"

// Kinds of domain failure. Handlers map these to HTTP statuses.
var (
	ErrDuplicateResource  = errors.New("duplicate resource")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var (
	ErrUsernameTaken = &DomainError{Kind: ErrDuplicateResource, Message: "Username already exists"}
	ErrEmailTaken    = &DomainError{Kind: ErrDuplicateResource, Message: "Email already exists"}
	ErrUserConflict  = &DomainError{Kind: ErrDuplicateResource, Message: "Username or email already exists"}
	ErrUserNotFound  = &DomainError{Kind: ErrNotFound, Message: "User not found"}
	// Unknown user and wrong password share this error.
	ErrBadLogin = &DomainError{Kind: ErrInvalidCredentials, Message: "Invalid username or password"}
)

// DomainError carries a client-safe message alongside its kind.
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }
