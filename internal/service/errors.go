package service

import (
	"errors"

	"github.com/avdeyev/identity-service/internal/tokens"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrMailDelivery       = errors.New("mail delivery failed")

	ErrInvalidToken = tokens.ErrInvalidToken
	ErrExpiredToken = tokens.ErrExpiredToken
)
