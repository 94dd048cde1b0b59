// Package contracts implements the contract domain: uploaded documents, their
// pipeline status machine, the normalized text cache, and derived risk.
package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/risk"
)

// Contract is an uploaded document and its derived analysis state.
// RiskScore and RiskSummary are computed from the contract's clauses on read.
type Contract struct {
	ID             uuid.UUID    `json:"id"`
	Filename       string       `json:"filename"`
	Title          string       `json:"title"`
	ContentType    string       `json:"content_type"`
	SizeBytes      int64        `json:"size_bytes"`
	StorageKey     string       `json:"storage_key"`
	ContractType   string       `json:"contract_type"`
	Status         Status       `json:"status"`
	Parties        []string     `json:"parties"`
	EffectiveDate  *string      `json:"effective_date"`
	ExpirationDate *string      `json:"expiration_date"`
	Summary        string       `json:"summary"`
	ErrorKind      *ErrorKind   `json:"error_kind,omitempty"`
	ErrorMessage   *string      `json:"error_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	RiskScore      risk.Level   `json:"risk_score"`
	RiskSummary    risk.Summary `json:"risk_summary"`
}

// CreateCommand carries an upload. Data holds the raw file bytes and
// ContentType the resolved media type.
type CreateCommand struct {
	Data         []byte
	Filename     string
	ContentType  string
	Title        string
	ContractType string
}

// Profile is contract-level metadata recovered during extraction.
// Dates are YYYY-MM-DD or empty. Title and ContractType only fill blanks.
type Profile struct {
	Title          string
	ContractType   string
	Parties        []string
	EffectiveDate  string
	ExpirationDate string
	Summary        string
}
