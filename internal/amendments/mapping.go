package amendments

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "amendments", "a").
	Project("id", "ID").
	Project("contract_id", "ContractID").
	Project("clause_id", "ClauseID").
	Project("amendment_type", "AmendmentType").
	Project("status", "Status").
	Project("original_text", "OriginalText").
	Project("proposed_text", "ProposedText").
	Project("rationale", "Rationale").
	Project("risk_mitigation", "RiskMitigation").
	Project("negotiation_points", "NegotiationPoints").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "CreatedAt", Descending: true}

const returning = `
	RETURNING id, contract_id, clause_id, amendment_type, status, original_text,
		proposed_text, rationale, risk_mitigation, negotiation_points, created_at, updated_at`

// Filters contains optional filtering criteria for amendment queries.
type Filters struct {
	ContractID    *uuid.UUID `json:"contract_id,omitempty"`
	ClauseID      *uuid.UUID `json:"clause_id,omitempty"`
	Status        *string    `json:"status,omitempty"`
	AmendmentType *string    `json:"amendment_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ContractID", f.ContractID).
		WhereEquals("ClauseID", f.ClauseID).
		WhereEquals("Status", f.Status).
		WhereEquals("AmendmentType", f.AmendmentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Malformed ids are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("contract_id"); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			f.ContractID = &id
		}
	}

	if c := values.Get("clause_id"); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			f.ClauseID = &id
		}
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if t := values.Get("amendment_type"); t != "" {
		f.AmendmentType = &t
	}

	return f
}

func scanAmendment(s repository.Scanner) (Amendment, error) {
	var (
		a         Amendment
		pointsRaw []byte
	)

	err := s.Scan(
		&a.ID,
		&a.ContractID,
		&a.ClauseID,
		&a.AmendmentType,
		&a.Status,
		&a.OriginalText,
		&a.ProposedText,
		&a.Rationale,
		&a.RiskMitigation,
		&pointsRaw,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}

	if len(pointsRaw) > 0 {
		if err := json.Unmarshal(pointsRaw, &a.NegotiationPoints); err != nil {
			return a, fmt.Errorf("unmarshal negotiation_points: %w", err)
		}
	}
	if a.NegotiationPoints == nil {
		a.NegotiationPoints = []string{}
	}

	return a, nil
}
