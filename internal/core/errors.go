package core

import "errors"

// Error codes for domain errors surfaced on the wire.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotMember    = "not_member"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
)

var (
	ErrNotMember  = errors.New("not a group member")
	ErrBadRequest = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewCoreError builds a CoreError for delivery over an event channel.
func NewCoreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
