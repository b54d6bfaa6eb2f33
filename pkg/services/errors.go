package services

import (
	"errors"
	"fmt"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/session"
)

// Sentinels the API layer maps onto status codes.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// ValidationError rejects one request field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// translateError maps errors of the lower layers onto the service sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var eve *escalation.ValidationError
	switch {
	case errors.As(err, &eve):
		return NewValidationError(eve.Field, eve.Message)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, escalation.ErrTicketNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, session.ErrAlreadyExists), errors.Is(err, escalation.ErrTicketExists), errors.Is(err, ErrLeadExists):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, escalation.ErrInvalidTransition):
		return NewValidationError("status", err.Error())
	}
	return err
}
