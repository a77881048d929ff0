package models

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors shared by repositories, services and handlers.
var (
	ErrValidation        = errors.New("validation failed")
	ErrAuth              = errors.New("authentication failed")
	ErrPermission        = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrConflict          = errors.New("claim was modified concurrently")
	ErrTransport         = errors.New("backend unreachable")
	ErrDuplicate         = errors.New("already exists")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records msg for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthErrorCode is the fixed identity error taxonomy.
type AuthErrorCode string

const (
	AuthEmailInUse   AuthErrorCode = "email-in-use"
	AuthInvalidEmail AuthErrorCode = "invalid-email"
	AuthWeakPassword AuthErrorCode = "weak-password"
	AuthUserNotFound AuthErrorCode = "user-not-found"
	AuthWrongPass    AuthErrorCode = "wrong-password"
	AuthRateLimited  AuthErrorCode = "rate-limited"
	AuthInvalidToken AuthErrorCode = "invalid-token"
	AuthUnknown      AuthErrorCode = "unknown"
)

var authMessages = map[AuthErrorCode]string{
	AuthEmailInUse:   "This email is already registered. Please login instead.",
	AuthInvalidEmail: "Invalid email address.",
	AuthWeakPassword: "Password is too weak. Use at least 6 characters.",
	AuthUserNotFound: "No account found with this email.",
	AuthWrongPass:    "Incorrect password.",
	AuthRateLimited:  "Too many failed attempts. Please try again later.",
	AuthInvalidToken: "Session is invalid or has expired.",
	AuthUnknown:      "Authentication failed.",
}

// AuthError is an identity failure with a user facing message.
type AuthError struct {
	Code    AuthErrorCode `json:"code"`
	Message string        `json:"message"`
}

// NewAuthError builds an AuthError with the standard message for code.
func NewAuthError(code AuthErrorCode) *AuthError {
	msg, ok := authMessages[code]
	if !ok {
		msg = authMessages[AuthUnknown]
	}
	return &AuthError{Code: code, Message: msg}
}

func (e *AuthError) Error() string { return string(e.Code) + ": " + e.Message }

func (e *AuthError) Unwrap() error { return ErrAuth }
