package service

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrRateLimited        = errors.New("rate limited")
	ErrEmailSendFailure   = errors.New("email send failed")

	// ErrTokenInvalid es el unico resultado visible de una verificacion fallida.
	ErrTokenInvalid = errors.New("token invalid")

	// Motivos de diagnostico; no se usan para decidir el flujo.
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenBadSignature  = errors.New("token signature invalid")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTokenSecretMissing = errors.New("token secret not configured")
)

// DuplicateAccountError indica que campo ya esta registrado.
type DuplicateAccountError struct {
	Field string
}

func (e *DuplicateAccountError) Error() string {
	switch e.Field {
	case "username":
		return "username is already taken"
	case "email":
		return "email is already in use"
	default:
		return ErrDuplicateAccount.Error()
	}
}

func (e *DuplicateAccountError) Is(target error) bool {
	return target == ErrDuplicateAccount
}
