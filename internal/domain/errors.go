package domain

import "errors"

// Errors returned by the collaborators. Their messages are shown to users
// verbatim, so keep them short and lower-case.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")

	ErrEmptyTitle = errors.New("title is required")
	ErrInvalidURL = errors.New("url must be an absolute http(s) url")

	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrUnknownProvider = errors.New("unknown auth provider")
)
