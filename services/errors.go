package services

import (
	"errors"
	"net/http"
)

// Error classes for feed mutations. Handlers map these onto HTTP statuses,
// the websocket gateway reports them to the originating session only.
var (
	// ErrValidation - a required field is missing or empty
	ErrValidation = errors.New("validation failed")
	// ErrSelfAction - an author acting on their own feeling
	ErrSelfAction = errors.New("author cannot act on own feeling")
	// ErrNotFound - unknown feeling identifier
	ErrNotFound = errors.New("feeling not found")
	// ErrStore - the persistence layer failed
	ErrStore = errors.New("store failure")
)

func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrSelfAction):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
