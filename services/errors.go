package services

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrRequestNotPending = errors.New("request is no longer pending")
	ErrSelfRequest       = errors.New("cannot share zones with yourself")
)
