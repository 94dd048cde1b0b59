package capability

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JaimeStill/covenant/internal/prompts"
	"github.com/JaimeStill/covenant/pkg/formatting"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://covenant.local/"

// validator checks agent responses against the per-stage JSON schemas.
type validator struct {
	schemas map[prompts.Stage]*jsonschema.Schema
}

func newValidator() (*validator, error) {
	c := jsonschema.NewCompiler()
	v := &validator{schemas: make(map[prompts.Stage]*jsonschema.Schema)}

	for _, stage := range prompts.Stages() {
		name := "schemas/" + string(stage) + ".json"
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}

		url := schemaBaseURL + name
		if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		schema, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[stage] = schema
	}

	return v, nil
}

// decode extracts JSON from content, validates it against the stage schema,
// and unmarshals it into T. Every failure wraps ErrMalformedOutput.
func decode[T any](v *validator, stage prompts.Stage, content string) (T, error) {
	var zero T

	raw, err := formatting.Parse[json.RawMessage](content)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	if schema, ok := v.schemas[stage]; ok {
		if err := schema.Validate(doc); err != nil {
			return zero, fmt.Errorf("%w: %s: %w", ErrMalformedOutput, stage, err)
		}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return out, nil
}
