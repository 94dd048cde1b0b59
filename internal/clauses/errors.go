package clauses

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/retry"
)

// Domain errors for clause operations.
var (
	ErrNotFound  = errors.New("clause not found")
	ErrDuplicate = errors.New("clause already exists")
)

// MapHTTPStatus maps clause domain errors, and the pipeline errors surfaced
// through clause endpoints, to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, contracts.ErrBusy), errors.Is(err, contracts.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, drafting.ErrNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, retry.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, capability.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, capability.ErrMalformedOutput), errors.Is(err, risk.ErrAssessmentFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
