package contracts

import (
	"fmt"
	"slices"
)

// Status is a contract's position in the analysis pipeline.
type Status string

const (
	StatusUploaded     Status = "uploaded"
	StatusNormalizing  Status = "normalizing"
	StatusExtracting   Status = "extracting"
	StatusAssessing    Status = "assessing"
	StatusAnalyzed     Status = "analyzed"
	StatusError        Status = "error"
	StatusReprocessing Status = "reprocessing"
)

var transitions = map[Status][]Status{
	StatusUploaded:     {StatusNormalizing, StatusError},
	StatusNormalizing:  {StatusExtracting, StatusError},
	StatusExtracting:   {StatusAssessing, StatusError},
	StatusAssessing:    {StatusAnalyzed, StatusError},
	StatusError:        {StatusReprocessing},
	StatusReprocessing: {StatusNormalizing, StatusError},
	StatusAnalyzed:     {},
}

// Statuses returns every status in pipeline order.
func Statuses() []Status {
	return []Status{
		StatusUploaded,
		StatusNormalizing,
		StatusExtracting,
		StatusAssessing,
		StatusAnalyzed,
		StatusError,
		StatusReprocessing,
	}
}

// ParseStatus validates s against the closed set of statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// CanTransition reports whether the table permits moving from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Next returns the legal successors of s.
func (s Status) Next() []Status {
	return slices.Clone(transitions[s])
}

// Active reports whether the pipeline still has work to do for s.
// Active statuses are exactly those from which error is reachable.
func (s Status) Active() bool {
	return CanTransition(s, StatusError)
}

// ErrorKind classifies why a contract entered the error status.
type ErrorKind string

const (
	KindUnsupportedFormat          ErrorKind = "UnsupportedFormat"
	KindCorruptDocument            ErrorKind = "CorruptDocument"
	KindExtractionFailed           ErrorKind = "ExtractionFailed"
	KindAssessmentFailed           ErrorKind = "AssessmentFailed"
	KindNotEligibleForAmendment    ErrorKind = "NotEligibleForAmendment"
	KindInvalidAmendmentTransition ErrorKind = "InvalidAmendmentTransition"
	KindPipelineConflict           ErrorKind = "PipelineConflict"
	KindTimeout                    ErrorKind = "Timeout"
	KindCapabilityUnavailable      ErrorKind = "CapabilityUnavailable"
	KindCancelled                  ErrorKind = "Cancelled"
	KindInternal                   ErrorKind = "Internal"
)
