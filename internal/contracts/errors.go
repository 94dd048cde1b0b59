package contracts

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/covenant/internal/normalize"
)

// Domain errors for contract operations.
var (
	ErrNotFound          = errors.New("contract not found")
	ErrDuplicate         = errors.New("contract already exists")
	ErrInvalidStatus     = errors.New("invalid contract status")
	ErrInvalidTransition = errors.New("invalid contract status transition")
	ErrBusy              = errors.New("pipeline already running for contract")
	ErrNoText            = errors.New("contract has no normalized text")
	ErrFileTooLarge      = errors.New("file exceeds maximum upload size")
	ErrInvalidFile       = errors.New("invalid file")
)

// MapHTTPStatus maps contract domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoText):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, normalize.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
