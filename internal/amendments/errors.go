package amendments

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/pkg/retry"
)

// Domain errors for amendment operations.
var (
	ErrNotFound          = errors.New("amendment not found")
	ErrDuplicate         = errors.New("amendment already exists")
	ErrInvalidStatus     = errors.New("invalid amendment status")
	ErrInvalidTransition = errors.New("invalid amendment transition")
	ErrNotDeletable      = errors.New("amendment cannot be deleted")
	ErrClauseMismatch    = errors.New("clause does not belong to contract")
	ErrInvalidAmendment  = errors.New("invalid amendment")
)

// MapHTTPStatus maps amendment domain errors, and the pipeline errors
// surfaced through amendment endpoints, to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotDeletable),
		errors.Is(err, contracts.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidAmendment):
		return http.StatusBadRequest
	case errors.Is(err, ErrClauseMismatch), errors.Is(err, drafting.ErrNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, retry.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, capability.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, capability.ErrMalformedOutput):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
