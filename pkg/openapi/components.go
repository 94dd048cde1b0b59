package openapi

import "maps"

// NewComponents returns the components every Covenant document shares: the
// paging request shape, the error body, and the error responses handlers
// reference through ResponseRef.
func NewComponents() *Components {
	c := &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Default: 1},
					"page_size": {Type: "integer", Description: "Results per page", Default: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending, e.g. -uploaded_at,filename"},
				},
			},
			"Error": {
				Type:     "object",
				Required: []string{"error"},
				Properties: map[string]*Schema{
					"error": {Type: "string", Description: "Error message"},
				},
			},
		},
		Responses: make(map[string]*Response),
	}

	for name, desc := range map[string]string{
		"BadRequest":           "Invalid request",
		"NotFound":             "Resource not found",
		"Conflict":             "Conflicting state: pipeline already running or illegal transition",
		"Unprocessable":        "Request is well-formed but not applicable to the target",
		"PayloadTooLarge":      "Upload exceeds the configured size limit",
		"UnsupportedMediaType": "Document format is not supported",
	} {
		c.Responses[name] = errorResponse(desc)
	}

	return c
}

func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {Schema: SchemaRef("Error")},
		},
	}
}
