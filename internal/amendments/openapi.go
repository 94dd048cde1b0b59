package amendments

import "github.com/JaimeStill/covenant/pkg/openapi"

var schemas = map[string]*openapi.Schema{
	"Amendment": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":                 {Type: "string", Format: "uuid"},
			"contract_id":        {Type: "string", Format: "uuid"},
			"clause_id":          {Type: "string", Format: "uuid"},
			"amendment_type":     {Type: "string", Enum: []any{"modification", "addition", "deletion", "replacement"}},
			"status":             {Type: "string", Enum: []any{"draft", "approved", "rejected", "applied"}},
			"original_text":      {Type: "string"},
			"proposed_text":      {Type: "string"},
			"rationale":          {Type: "string"},
			"risk_mitigation":    {Type: "string"},
			"negotiation_points": {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"created_at":         {Type: "string", Format: "date-time"},
			"updated_at":         {Type: "string", Format: "date-time"},
		},
	},
	"AmendmentCreate": {
		Type:     "object",
		Required: []string{"contract_id", "proposed_text"},
		Properties: map[string]*openapi.Schema{
			"contract_id":        {Type: "string", Format: "uuid"},
			"clause_id":          {Type: "string", Format: "uuid"},
			"amendment_type":     {Type: "string", Default: "modification"},
			"original_text":      {Type: "string"},
			"proposed_text":      {Type: "string"},
			"rationale":          {Type: "string"},
			"risk_mitigation":    {Type: "string"},
			"negotiation_points": {Type: "array", Items: &openapi.Schema{Type: "string"}},
		},
	},
	"AmendmentTransition": {
		Type:     "object",
		Required: []string{"status"},
		Properties: map[string]*openapi.Schema{
			"status": {Type: "string", Enum: []any{"approved", "rejected", "applied"}},
		},
	},
	"AmendmentPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("Amendment")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
	"AmendmentSearch": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"page":           {Type: "integer"},
			"page_size":      {Type: "integer"},
			"search":         {Type: "string"},
			"sort":           {Type: "string"},
			"contract_id":    {Type: "string", Format: "uuid"},
			"clause_id":      {Type: "string", Format: "uuid"},
			"status":         {Type: "string"},
			"amendment_type": {Type: "string"},
		},
	},
}
