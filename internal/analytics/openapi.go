package analytics

import "github.com/JaimeStill/covenant/pkg/openapi"

func countList(key string) *openapi.Schema {
	return &openapi.Schema{
		Type: "array",
		Items: &openapi.Schema{
			Type: "object",
			Properties: map[string]*openapi.Schema{
				key:     {Type: "string"},
				"count": {Type: "integer"},
			},
		},
	}
}

var schemas = map[string]*openapi.Schema{
	"Analytics": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"contracts_by_type":       countList("type"),
			"clauses_by_type":         countList("type"),
			"risk_distribution":       countList("level"),
			"amendments_by_status":    countList("status"),
			"most_risky_clause_types": countList("type"),
		},
	},
	"DashboardStats": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"total_contracts":      {Type: "integer"},
			"analyzed_contracts":   {Type: "integer"},
			"processing_contracts": {Type: "integer"},
			"failed_contracts":     {Type: "integer"},
			"total_clauses":        {Type: "integer"},
			"high_risk_clauses":    {Type: "integer"},
			"pending_amendments":   {Type: "integer"},
			"analysis_rate":        {Type: "number"},
		},
	},
}
