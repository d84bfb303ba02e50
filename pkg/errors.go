package pin

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	InvalidInput      ErrorCode = "invalid-input"
	NoCoinAvailable   ErrorCode = "no-coin-available"
	SigningIncomplete ErrorCode = "signing-incomplete"
	TransportFailure  ErrorCode = "transport-failure"
	BadRequest        ErrorCode = "bad-request"
	NotAvailable      ErrorCode = "not-available"
	NotFound          ErrorCode = "not-found"
	AlreadyExists     ErrorCode = "already-exists"
	UnknownError      ErrorCode = "unknown-error"
)

type ErrorInfo struct {
	Code    ErrorCode // machine-readble ErrorCode enumeration
	Message string    // human-readable debug message
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewErr(code ErrorCode, format string, args ...any) error {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

func IsNotFoundError(err error) bool {
	return IsError(err, NotFound)
}

func IsInvalidInputError(err error) bool {
	return IsError(err, InvalidInput)
}

func IsError(err error, ofType ErrorCode) bool {
	var e *ErrorInfo
	if errors.As(err, &e) {
		return e.Code == ofType
	}
	return false
}
