package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError carries the HTTP status and the message shown to the admin.
// Raw holds offending upstream text for diagnosis; Details carries structured
// extras such as validation violations.
type ServiceError struct {
	Status  int
	Message string
	Raw     string
	Details any
}

func (e ServiceError) Error() string {
	return e.Message
}

func ErrNotFound(msg string) error {
	return ServiceError{Status: http.StatusNotFound, Message: msg}
}

func ErrBadRequest(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Status: http.StatusForbidden, Message: msg}
}

func ErrUnauthorized(msg string) error {
	return ServiceError{Status: http.StatusUnauthorized, Message: msg}
}

// ErrUpstream surfaces an external API failure message verbatim.
func ErrUpstream(err error) error {
	return ServiceError{Status: http.StatusInternalServerError, Message: err.Error()}
}

func ErrInvalidOutput(msg, raw string, details any) error {
	return ServiceError{Status: http.StatusInternalServerError, Message: msg, Raw: raw, Details: details}
}

// AsServiceError unwraps err into a ServiceError when one is in the chain.
func AsServiceError(err error) (ServiceError, bool) {
	var serr ServiceError
	if errors.As(err, &serr) {
		return serr, true
	}
	return ServiceError{}, false
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// stepError labels a failed write step the way the admin console shows it:
// "<operation> failed: <db message>".
func stepError(operation string, err error) error {
	return fmt.Errorf("%s failed: %w", operation, err)
}
