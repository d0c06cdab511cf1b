package domain

import "errors"

var (
	// ErrInvalidInput indicates malformed or weak user-correctable data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateIdentity indicates the email is already registered.
	ErrDuplicateIdentity = errors.New("account already exists")
	// ErrInvalidCredentials is deliberately generic: it never reveals
	// whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates too many consecutive failed logins.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrInvalidToken indicates an unknown, used or expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpired indicates a pending signup past its expiry.
	ErrExpired = errors.New("expired")
	// ErrEmailMismatch indicates the redeem email does not match the token payload.
	ErrEmailMismatch = errors.New("email mismatch")
	// ErrOriginNotAllowed indicates the caller origin is not allow-listed.
	ErrOriginNotAllowed = errors.New("origin not allowed")
	// ErrInvalidSignature indicates a webhook signature mismatch.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNotFound indicates a missing user, profile or record.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller role does not grant access.
	ErrForbidden = errors.New("forbidden")
	// ErrPersistence indicates an I/O failure during snapshot save or load.
	ErrPersistence = errors.New("persistence failure")
)
