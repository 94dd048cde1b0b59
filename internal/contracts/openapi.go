package contracts

import "github.com/JaimeStill/covenant/pkg/openapi"

var uploadBody = &openapi.RequestBody{
	Required: true,
	Content: map[string]*openapi.MediaType{
		"multipart/form-data": {
			Schema: &openapi.Schema{
				Type:     "object",
				Required: []string{"file"},
				Properties: map[string]*openapi.Schema{
					"file":          {Type: "string", Format: "binary", Description: "PDF, DOC, DOCX or plain text"},
					"title":         {Type: "string"},
					"contract_type": {Type: "string", Description: "e.g. service, license, employment"},
				},
			},
		},
	},
}

var schemas = map[string]*openapi.Schema{
	"Contract": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":              {Type: "string", Format: "uuid"},
			"filename":        {Type: "string"},
			"title":           {Type: "string"},
			"content_type":    {Type: "string"},
			"size_bytes":      {Type: "integer"},
			"storage_key":     {Type: "string"},
			"contract_type":   {Type: "string"},
			"status":          {Type: "string", Enum: []any{"uploaded", "normalizing", "extracting", "assessing", "analyzed", "error", "reprocessing"}},
			"parties":         {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"effective_date":  {Type: "string", Format: "date"},
			"expiration_date": {Type: "string", Format: "date"},
			"summary":         {Type: "string"},
			"error_kind":      {Type: "string"},
			"error_message":   {Type: "string"},
			"risk_score":      {Type: "string", Enum: []any{"low", "medium", "high", "unscored"}},
			"risk_summary":    openapi.SchemaRef("RiskSummary"),
			"created_at":      {Type: "string", Format: "date-time"},
			"updated_at":      {Type: "string", Format: "date-time"},
		},
	},
	"RiskSummary": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"level":    {Type: "string"},
			"min":      {Type: "number"},
			"avg":      {Type: "number"},
			"max":      {Type: "number"},
			"assessed": {Type: "integer"},
			"unscored": {Type: "integer"},
		},
	},
	"ContractPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("Contract")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
	"ContractSearch": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"page":          {Type: "integer"},
			"page_size":     {Type: "integer"},
			"search":        {Type: "string"},
			"sort":          {Type: "string"},
			"status":        {Type: "string"},
			"contract_type": {Type: "string"},
			"filename":      {Type: "string"},
			"risk_score":    {Type: "string"},
		},
	},
	"NormalizedText": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"text": {Type: "string"},
			"pages": {
				Type: "array",
				Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"page":  {Type: "integer"},
						"start": {Type: "integer"},
						"end":   {Type: "integer"},
					},
				},
			},
		},
	},
}
