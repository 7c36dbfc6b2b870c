package match

import "errors"

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("match not found")
	ErrAlreadyTaken   = errors.New("seat already taken")
	ErrDataAccess     = errors.New("data access error")
	ErrInvalidRequest = errors.New("invalid request")
)
