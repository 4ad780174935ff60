package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures of the sale core so callers can branch on
// the kind instead of the message.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidState      ErrorKind = "invalid_state"
	KindEmptyComanda      ErrorKind = "empty_comanda"
	KindPersistence       ErrorKind = "persistence_error"
	KindUnknown           ErrorKind = "unknown"
)

// Error is the structured failure returned by the services
type Error struct {
	Kind    ErrorKind
	Message string
	// Products holds the display names of products without enough stock
	Products []string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later
func (e *Error) Retryable() bool {
	return e.Kind == KindPersistence
}

// NewValidationError reports malformed or missing input
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewInsufficientStockError names every product that could not cover its demand
func NewInsufficientStockError(productNames ...string) *Error {
	return &Error{
		Kind:     KindInsufficientStock,
		Message:  "Estoque insuficiente para o produto " + strings.Join(productNames, ", "),
		Products: productNames,
	}
}

// NewNotFoundError reports a missing referenced entity
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewInvalidStateError reports an operation not allowed in the current lifecycle state
func NewInvalidStateError(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

// NewEmptyComandaError reports a finalize attempt on a comanda without items
func NewEmptyComandaError() *Error {
	return &Error{Kind: KindEmptyComanda, Message: "Comanda sem itens não pode ser finalizada"}
}

// NewPersistenceError wraps a storage failure. The request is safe to retry.
func NewPersistenceError(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// AsError extracts a *Error from the chain
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown for errors outside the taxonomy
func KindOf(err error) ErrorKind {
	if domainErr, ok := AsError(err); ok {
		return domainErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
