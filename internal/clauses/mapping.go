package clauses

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "clauses", "cl").
	Project("id", "ID").
	Project("contract_id", "ContractID").
	Project("ordinal", "Ordinal").
	Project("clause_type", "ClauseType").
	Project("title", "Title").
	Project("text", "Text").
	Project("section_number", "SectionNumber").
	Project("page_number", "PageNumber").
	Project("start_offset", "StartOffset").
	Project("end_offset", "EndOffset").
	Project("risk_level", "RiskLevel").
	Project("risk_score", "RiskScore").
	Project("risk_factors", "RiskFactors").
	Project("key_terms", "KeyTerms").
	Project("analysis", "Analysis").
	Project("assessed_at", "AssessedAt").
	Project("created_at", "CreatedAt")

var defaultSort = []query.SortField{
	{Field: "ContractID"},
	{Field: "Ordinal"},
}

const returning = `
	RETURNING id, contract_id, ordinal, clause_type, title, text, section_number,
		page_number, start_offset, end_offset, risk_level, risk_score, risk_factors,
		key_terms, analysis, assessed_at, created_at`

// Filters contains optional filtering criteria for clause queries.
// Nil fields are ignored. All fields use exact matching.
type Filters struct {
	ContractID *uuid.UUID `json:"contract_id,omitempty"`
	ClauseType *string    `json:"clause_type,omitempty"`
	RiskLevel  *string    `json:"risk_level,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ContractID", f.ContractID).
		WhereEquals("ClauseType", f.ClauseType).
		WhereEquals("RiskLevel", f.RiskLevel)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("contract_id"); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			f.ContractID = &id
		}
	}

	if ct := values.Get("clause_type"); ct != "" {
		f.ClauseType = &ct
	}

	if rl := values.Get("risk_level"); rl != "" {
		f.RiskLevel = &rl
	}

	return f
}

func scanClause(s repository.Scanner) (Clause, error) {
	var (
		c          Clause
		factorsRaw []byte
		termsRaw   []byte
	)

	err := s.Scan(
		&c.ID,
		&c.ContractID,
		&c.Ordinal,
		&c.ClauseType,
		&c.Title,
		&c.Text,
		&c.SectionNumber,
		&c.PageNumber,
		&c.StartOffset,
		&c.EndOffset,
		&c.RiskLevel,
		&c.RiskScore,
		&factorsRaw,
		&termsRaw,
		&c.Analysis,
		&c.AssessedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return c, err
	}

	if len(factorsRaw) > 0 {
		if err := json.Unmarshal(factorsRaw, &c.RiskFactors); err != nil {
			return c, fmt.Errorf("unmarshal risk_factors: %w", err)
		}
	}
	if len(termsRaw) > 0 {
		if err := json.Unmarshal(termsRaw, &c.KeyTerms); err != nil {
			return c, fmt.Errorf("unmarshal key_terms: %w", err)
		}
	}

	if c.RiskFactors == nil {
		c.RiskFactors = []string{}
	}
	if c.KeyTerms == nil {
		c.KeyTerms = []string{}
	}

	return c, nil
}
