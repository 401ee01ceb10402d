package mpesa

import (
	"errors"
	"fmt"
)

// Kind discriminates the failure classes a caller can branch on.
type Kind int

const (
	// KindValidation marks bad input that never reached the wire.
	KindValidation Kind = iota + 1
	// KindAuth marks a rejected credential exchange.
	KindAuth
	// KindAPI marks a signed request the gateway rejected or that timed out.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the client. Callers switch on
// Kind rather than parsing Message.
type Error struct {
	Kind       Kind
	Message    string
	Field      string // validation only
	StatusCode int    // auth and api; 0 when no response was received
	Body       string // raw response body
	Code       string // gateway error code, when the body carried one
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindValidation:
		if e.Field != "" {
			return fmt.Sprintf("mpesa validation error: %s: %s", e.Field, e.Message)
		}
		return "mpesa validation error: " + e.Message
	case KindAuth:
		if e.StatusCode == 0 {
			return "mpesa auth error: " + e.Message
		}
		return fmt.Sprintf("mpesa auth error: status=%d body=%s", e.StatusCode, e.Body)
	default:
		if e.Code != "" {
			return fmt.Sprintf("mpesa api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
		}
		return fmt.Sprintf("mpesa api error: status=%d: %s", e.StatusCode, e.Message)
	}
}

// Retryable reports whether the dispatcher may try the request again.
func (e *Error) Retryable() bool {
	return e.Kind == KindAPI && e.StatusCode >= 500
}

func validationError(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
