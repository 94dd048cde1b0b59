// Package clauses implements the clause domain: typed spans of a contract's
// normalized text and their risk assessment.
package clauses

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/internal/taxonomy"
)

// Clause is one extracted span of a contract. The risk fields are written
// together by a single statement.
type Clause struct {
	ID            uuid.UUID           `json:"id"`
	ContractID    uuid.UUID           `json:"contract_id"`
	Ordinal       int                 `json:"ordinal"`
	ClauseType    taxonomy.ClauseType `json:"clause_type"`
	Title         string              `json:"title"`
	Text          string              `json:"text"`
	SectionNumber string              `json:"section_number"`
	PageNumber    int                 `json:"page_number"`
	StartOffset   int                 `json:"start_offset"`
	EndOffset     int                 `json:"end_offset"`
	RiskLevel     risk.Level          `json:"risk_level"`
	RiskScore     *float64            `json:"risk_score"`
	RiskFactors   []string            `json:"risk_factors"`
	KeyTerms      []string            `json:"key_terms"`
	Analysis      string              `json:"analysis"`
	AssessedAt    *time.Time          `json:"assessed_at"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Scored projects the clause onto the fields risk summaries need.
func (c Clause) Scored() risk.Scored {
	return risk.Scored{Level: c.RiskLevel, Score: c.RiskScore}
}
