package service

import "errors"

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Unknown usernames and wrong passwords both report this error.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserAlreadyExists is returned when attempting to register with an existing username.
	ErrUserAlreadyExists = errors.New("username must be unique")
	// ErrUnknownIdentity is returned when an identity refers to a user that no longer exists.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrBlogNotFound is returned for blog ids that do not resolve.
	ErrBlogNotFound = errors.New("blog not found")
	// ErrForbidden is returned when the caller does not own the blog being removed.
	ErrForbidden = errors.New("only the creator can remove a blog")
	// ErrValidation wraps every input validation failure.
	ErrValidation = errors.New("validation failed")
)
