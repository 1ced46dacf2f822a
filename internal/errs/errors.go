package errs

import "errors"

// Code classifies a broker failure.
type Code string

const (
	CodeQuotaExceeded         Code = "QUOTA_EXCEEDED"
	CodeCredentialUnavailable Code = "CREDENTIAL_UNAVAILABLE"
	CodeUpstreamAuthRejected  Code = "UPSTREAM_AUTH_REJECTED"
	CodeUpstreamTransient     Code = "UPSTREAM_TRANSIENT"
	CodeUpstreamRejected      Code = "UPSTREAM_REJECTED"
	CodeVersionConflict       Code = "VERSION_CONFLICT"
	CodeNotFound              Code = "NOT_FOUND"
)

// BrokerError is a typed failure returned across the orchestrator boundary.
// Nothing is thrown; callers branch on the code.
type BrokerError struct {
	Code    Code
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *BrokerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Wrap builds a typed error around an underlying cause.
func Wrap(code Code, msg string, err error) error {
	return &BrokerError{Code: code, Message: msg, Err: err}
}

// New builds a typed error with just a message.
func New(code Code, msg string) error {
	return &BrokerError{Code: code, Message: msg}
}

// CodeOf extracts the broker code from an error chain, or "" for untyped errors.
func CodeOf(err error) Code {
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Retryable reports whether the caller may usefully retry. The broker itself
// never retries these; retry policy belongs to the caller.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeUpstreamTransient, CodeCredentialUnavailable:
		return true
	default:
		return false
	}
}

// ErrVersionConflict indicates an optimistic swap lost the race.
var ErrVersionConflict = &BrokerError{Code: CodeVersionConflict, Message: "version conflict"}
