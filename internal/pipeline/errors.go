package pipeline

import (
	"context"
	"errors"

	"github.com/JaimeStill/covenant/internal/amendments"
	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/drafting"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/retry"
)

var (
	// ErrConflict indicates another operation holds the contract's token.
	ErrConflict = contracts.ErrBusy
	// ErrCancelled indicates a run stopped at a stage boundary on request.
	ErrCancelled = errors.New("pipeline cancelled")
)

// Classify maps a stage error to the kind recorded on the contract.
// Transport failures take precedence over the stage that surfaced them.
func Classify(err error) contracts.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return contracts.KindCancelled
	case errors.Is(err, ErrConflict):
		return contracts.KindPipelineConflict
	case errors.Is(err, normalize.ErrUnsupportedFormat):
		return contracts.KindUnsupportedFormat
	case errors.Is(err, normalize.ErrCorruptDocument):
		return contracts.KindCorruptDocument
	case errors.Is(err, retry.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return contracts.KindTimeout
	case errors.Is(err, capability.ErrUnavailable):
		return contracts.KindCapabilityUnavailable
	case errors.Is(err, extract.ErrExtractionFailed):
		return contracts.KindExtractionFailed
	case errors.Is(err, risk.ErrAssessmentFailed):
		return contracts.KindAssessmentFailed
	case errors.Is(err, drafting.ErrNotEligible):
		return contracts.KindNotEligibleForAmendment
	case errors.Is(err, amendments.ErrInvalidTransition):
		return contracts.KindInvalidAmendmentTransition
	default:
		return contracts.KindInternal
	}
}

func retryable(err error) bool {
	return errors.Is(err, retry.ErrTimeout) || errors.Is(err, capability.ErrUnavailable)
}
