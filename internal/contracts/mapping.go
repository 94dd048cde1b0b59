package contracts

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

const dateLayout = "2006-01-02"

var projection = query.
	NewProjectionMap("public", "contracts", "c").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("title", "Title").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("storage_key", "StorageKey").
	Project("contract_type", "ContractType").
	Project("status", "Status").
	Project("parties", "Parties").
	Project("effective_date", "EffectiveDate").
	Project("expiration_date", "ExpirationDate").
	Project("summary", "Summary").
	Project("error_kind", "ErrorKind").
	Project("error_message", "ErrorMessage").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "contract_risk", "r", "LEFT JOIN", "c.id = r.contract_id").
	ProjectExpr("COALESCE(r.level, 'unscored')", "RiskScore").
	Project("min_score", "RiskMin").
	Project("avg_score", "RiskAvg").
	Project("max_score", "RiskMax").
	Project("assessed", "RiskAssessed").
	Project("unscored", "RiskUnscored")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for contract queries.
// Nil fields are ignored. Status, ContractType and RiskScore use exact
// matching. Filename uses case-insensitive contains matching.
type Filters struct {
	Status       *string `json:"status,omitempty"`
	ContractType *string `json:"contract_type,omitempty"`
	Filename     *string `json:"filename,omitempty"`
	RiskScore    *string `json:"risk_score,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("ContractType", f.ContractType).
		WhereContains("Filename", f.Filename).
		WhereEquals("RiskScore", f.RiskScore)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if ct := values.Get("contract_type"); ct != "" {
		f.ContractType = &ct
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if rs := values.Get("risk_score"); rs != "" {
		f.RiskScore = &rs
	}

	return f
}

func scanContract(s repository.Scanner) (Contract, error) {
	var (
		c          Contract
		partiesRaw []byte
		effective  *time.Time
		expiration *time.Time
		level      *string
		assessed   *int
		unscored   *int
	)

	err := s.Scan(
		&c.ID,
		&c.Filename,
		&c.Title,
		&c.ContentType,
		&c.SizeBytes,
		&c.StorageKey,
		&c.ContractType,
		&c.Status,
		&partiesRaw,
		&effective,
		&expiration,
		&c.Summary,
		&c.ErrorKind,
		&c.ErrorMessage,
		&c.CreatedAt,
		&c.UpdatedAt,
		&level,
		&c.RiskSummary.Min,
		&c.RiskSummary.Avg,
		&c.RiskSummary.Max,
		&assessed,
		&unscored,
	)
	if err != nil {
		return c, err
	}

	if len(partiesRaw) > 0 {
		if err := json.Unmarshal(partiesRaw, &c.Parties); err != nil {
			return c, fmt.Errorf("unmarshal parties: %w", err)
		}
	}
	if c.Parties == nil {
		c.Parties = []string{}
	}

	c.EffectiveDate = formatDate(effective)
	c.ExpirationDate = formatDate(expiration)

	c.RiskSummary.Level = risk.Unscored
	if level != nil {
		c.RiskSummary.Level = risk.Level(*level)
	}
	if assessed != nil {
		c.RiskSummary.Assessed = *assessed
	}
	if unscored != nil {
		c.RiskSummary.Unscored = *unscored
	}
	c.RiskScore = c.RiskSummary.Level

	return c, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
