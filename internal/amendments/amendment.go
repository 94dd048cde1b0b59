// Package amendments implements the amendment domain: proposed edits to a
// contract or one of its clauses, moved through a review status machine.
package amendments

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/taxonomy"
)

// Amendment is a proposed edit. ClauseID is nil for contract-level amendments.
type Amendment struct {
	ID                uuid.UUID              `json:"id"`
	ContractID        uuid.UUID              `json:"contract_id"`
	ClauseID          *uuid.UUID             `json:"clause_id"`
	AmendmentType     taxonomy.AmendmentType `json:"amendment_type"`
	Status            Status                 `json:"status"`
	OriginalText      *string                `json:"original_text"`
	ProposedText      string                 `json:"proposed_text"`
	Rationale         string                 `json:"rationale"`
	RiskMitigation    string                 `json:"risk_mitigation"`
	NegotiationPoints []string               `json:"negotiation_points"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// CreateCommand is a manually authored amendment. It is stored in draft status.
type CreateCommand struct {
	ContractID        uuid.UUID  `json:"contract_id"`
	ClauseID          *uuid.UUID `json:"clause_id,omitempty"`
	AmendmentType     string     `json:"amendment_type"`
	OriginalText      *string    `json:"original_text,omitempty"`
	ProposedText      string     `json:"proposed_text"`
	Rationale         string     `json:"rationale"`
	RiskMitigation    string     `json:"risk_mitigation"`
	NegotiationPoints []string   `json:"negotiation_points"`
}

// TransitionCommand is the body of a status change request.
type TransitionCommand struct {
	Status Status `json:"status"`
}
