package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

// NewInvalidTransition reports a status change that is not legal from the
// ticket's current state.
func NewInvalidTransition(current string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["current_status"] = current
	return NewDomainError("INVALID_TRANSITION", "status transition not allowed", http.StatusConflict, details)
}

// NewTicketNotOpenForReply reports an append attempted against a resolved or
// closed ticket.
func NewTicketNotOpenForReply(current string) error {
	return NewDomainError("TICKET_NOT_OPEN_FOR_REPLY", "ticket does not accept replies",
		http.StatusConflict, map[string]any{"current_status": current})
}

// NewEmptyMessage reports blank reply content.
func NewEmptyMessage() error {
	return NewDomainError("EMPTY_MESSAGE", "message body is empty", http.StatusBadRequest, nil)
}

// NewConcurrentModification reports a lost optimistic-check race. The caller
// should refetch and retry; the core never retries on its own.
func NewConcurrentModification(details map[string]any) error {
	return NewDomainError("CONCURRENT_MODIFICATION", "ticket was modified concurrently",
		http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
