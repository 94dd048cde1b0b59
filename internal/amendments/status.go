package amendments

import (
	"fmt"
	"slices"
)

// Status is an amendment's review state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusApplied  Status = "applied"
)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusApproved, StatusRejected},
	StatusApproved: {StatusApplied},
	StatusRejected: {},
	StatusApplied:  {},
}

// Statuses returns every amendment status in review order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusApproved, StatusRejected, StatusApplied}
}

// ParseStatus validates s against the known statuses.
func ParseStatus(s string) (Status, error) {
	v := Status(s)
	if _, ok := transitions[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return v, nil
}

// CanTransition reports whether an amendment may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Next returns the statuses reachable from s.
func (s Status) Next() []Status {
	return slices.Clone(transitions[s])
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Deletable reports whether an amendment in status s may be removed.
func (s Status) Deletable() bool {
	return s == StatusDraft || s == StatusRejected
}
