package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// DomainError is an error the HTTP layer renders verbatim: Status becomes the
// response code and Code the machine-readable error code.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func notFound(code, message string) *DomainError {
	return domainError(http.StatusNotFound, code, message, nil)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// errorCode reports the domain code carried by err, or "" for plain errors.
func errorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
