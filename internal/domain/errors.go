package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInternal           = errors.New("internal error")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
