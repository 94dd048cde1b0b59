// Package analytics derives dashboard metrics from the current contracts,
// clauses, and amendments. Nothing here is persisted; every read recomputes
// from a fresh Snapshot.
package analytics

import (
	"cmp"
	"math"
	"slices"

	"github.com/JaimeStill/covenant/internal/amendments"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/risk"
)

// DefaultTop bounds MostRiskyClauseTypes when no limit is requested.
const DefaultTop = 5

// ContractRow is the projection of a contract that analytics reads.
type ContractRow struct {
	ContractType string
	Status       contracts.Status
}

// ClauseRow is the projection of a clause that analytics reads.
type ClauseRow struct {
	ClauseType string
	RiskLevel  risk.Level
}

// AmendmentRow is the projection of an amendment that analytics reads.
type AmendmentRow struct {
	Status amendments.Status
}

// Snapshot is the full entity state analytics is computed from.
type Snapshot struct {
	Contracts  []ContractRow
	Clauses    []ClauseRow
	Amendments []AmendmentRow
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type LevelCount struct {
	Level risk.Level `json:"level"`
	Count int        `json:"count"`
}

type StatusCount struct {
	Status amendments.Status `json:"status"`
	Count  int               `json:"count"`
}

// Analytics holds the distributions shown on the dashboard.
type Analytics struct {
	ContractsByType      []TypeCount   `json:"contracts_by_type"`
	ClausesByType        []TypeCount   `json:"clauses_by_type"`
	RiskDistribution     []LevelCount  `json:"risk_distribution"`
	AmendmentsByStatus   []StatusCount `json:"amendments_by_status"`
	MostRiskyClauseTypes []TypeCount   `json:"most_risky_clause_types"`
}

// DashboardStats holds the headline counters shown on the dashboard.
// AnalysisRate is the analyzed percentage rounded to one decimal.
type DashboardStats struct {
	TotalContracts      int     `json:"total_contracts"`
	AnalyzedContracts   int     `json:"analyzed_contracts"`
	ProcessingContracts int     `json:"processing_contracts"`
	FailedContracts     int     `json:"failed_contracts"`
	TotalClauses        int     `json:"total_clauses"`
	HighRiskClauses     int     `json:"high_risk_clauses"`
	PendingAmendments   int     `json:"pending_amendments"`
	AnalysisRate        float64 `json:"analysis_rate"`
}

// Compute derives Analytics from s. Type counts are ordered by descending
// count then lexical type. Every risk level and amendment status is present,
// with zero counts where nothing matches. top <= 0 uses DefaultTop.
func Compute(s Snapshot, top int) Analytics {
	if top <= 0 {
		top = DefaultTop
	}

	contractTypes := make(map[string]int)
	for _, c := range s.Contracts {
		contractTypes[c.ContractType]++
	}

	clauseTypes := make(map[string]int)
	highTypes := make(map[string]int)
	levels := make(map[risk.Level]int)
	for _, c := range s.Clauses {
		clauseTypes[c.ClauseType]++
		levels[c.RiskLevel]++
		if c.RiskLevel == risk.High {
			highTypes[c.ClauseType]++
		}
	}

	statuses := make(map[amendments.Status]int)
	for _, a := range s.Amendments {
		statuses[a.Status]++
	}

	out := Analytics{
		ContractsByType:      ranked(contractTypes),
		ClausesByType:        ranked(clauseTypes),
		RiskDistribution:     make([]LevelCount, 0, len(risk.Levels())),
		AmendmentsByStatus:   make([]StatusCount, 0, len(amendments.Statuses())),
		MostRiskyClauseTypes: ranked(highTypes),
	}

	for _, l := range risk.Levels() {
		out.RiskDistribution = append(out.RiskDistribution, LevelCount{Level: l, Count: levels[l]})
	}

	for _, st := range amendments.Statuses() {
		out.AmendmentsByStatus = append(out.AmendmentsByStatus, StatusCount{Status: st, Count: statuses[st]})
	}

	if len(out.MostRiskyClauseTypes) > top {
		out.MostRiskyClauseTypes = out.MostRiskyClauseTypes[:top]
	}

	return out
}

// Stats derives DashboardStats from s.
func Stats(s Snapshot) DashboardStats {
	var out DashboardStats

	out.TotalContracts = len(s.Contracts)
	for _, c := range s.Contracts {
		switch c.Status {
		case contracts.StatusAnalyzed:
			out.AnalyzedContracts++
		case contracts.StatusError:
			out.FailedContracts++
		default:
			out.ProcessingContracts++
		}
	}

	out.TotalClauses = len(s.Clauses)
	for _, c := range s.Clauses {
		if c.RiskLevel == risk.High {
			out.HighRiskClauses++
		}
	}

	for _, a := range s.Amendments {
		if a.Status == amendments.StatusDraft {
			out.PendingAmendments++
		}
	}

	if out.TotalContracts > 0 {
		rate := float64(out.AnalyzedContracts) / float64(out.TotalContracts) * 100
		out.AnalysisRate = math.Round(rate*10) / 10
	}

	return out
}

func ranked(counts map[string]int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeCount{Type: t, Count: n})
	}

	slices.SortFunc(out, func(a, b TypeCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})

	return out
}
