package prompts

import "github.com/JaimeStill/covenant/pkg/openapi"

var stageEnum = []any{"classify", "score", "draft", "profile"}

var schemas = map[string]*openapi.Schema{
	"Prompt": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":           {Type: "string", Format: "uuid"},
			"name":         {Type: "string"},
			"stage":        {Type: "string", Enum: stageEnum},
			"instructions": {Type: "string"},
			"description":  {Type: "string"},
			"active":       {Type: "boolean"},
			"created_at":   {Type: "string", Format: "date-time"},
			"updated_at":   {Type: "string", Format: "date-time"},
		},
	},
	"PromptCommand": {
		Type:     "object",
		Required: []string{"name", "stage", "instructions"},
		Properties: map[string]*openapi.Schema{
			"name":         {Type: "string"},
			"stage":        {Type: "string", Enum: stageEnum},
			"instructions": {Type: "string"},
			"description":  {Type: "string"},
		},
	},
	"PromptPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("Prompt")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
	"PromptSearch": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"page":      {Type: "integer"},
			"page_size": {Type: "integer"},
			"search":    {Type: "string"},
			"sort":      {Type: "string"},
			"stage":     {Type: "string", Enum: stageEnum},
			"name":      {Type: "string"},
			"active":    {Type: "boolean"},
		},
	},
	"StageContent": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"stage":     {Type: "string", Enum: stageEnum},
			"content":   {Type: "string"},
			"prompt_id": {Type: "string", Format: "uuid", Description: "Active override that supplied the content"},
		},
	},
}
