package clauses

import "github.com/JaimeStill/covenant/pkg/openapi"

var schemas = map[string]*openapi.Schema{
	"Clause": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":             {Type: "string", Format: "uuid"},
			"contract_id":    {Type: "string", Format: "uuid"},
			"ordinal":        {Type: "integer"},
			"clause_type":    {Type: "string"},
			"title":          {Type: "string"},
			"text":           {Type: "string"},
			"section_number": {Type: "string"},
			"page_number":    {Type: "integer"},
			"start_offset":   {Type: "integer"},
			"end_offset":     {Type: "integer"},
			"risk_level":     {Type: "string", Enum: []any{"low", "medium", "high", "unscored"}},
			"risk_score":     openapi.Range("number", 0, 1),
			"risk_factors":   {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"key_terms":      {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"analysis":       {Type: "string"},
			"assessed_at":    {Type: "string", Format: "date-time"},
			"created_at":     {Type: "string", Format: "date-time"},
		},
	},
	"ClausePage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("Clause")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
	"ClauseSearch": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"search":      {Type: "string"},
			"sort":        {Type: "string"},
			"contract_id": {Type: "string", Format: "uuid"},
			"clause_type": {Type: "string"},
			"risk_level":  {Type: "string"},
		},
	},
}
