package quiz

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pavelanni/docquiz/internal/model"
)

const schemaURL = "quiz.schema.json"

var (
	compileOnce sync.Once
	compiled    *validator.Schema
	compileErr  error
)

// Schema returns the quiz JSON schema. The generator sends it as the
// response format and Validate enforces the same document on every candidate.
// Counts are left to ValidateSet so they surface as business-rule errors.
func Schema() *jsonschema.Definition {
	labels := make([]string, len(model.Labels))
	for i, l := range model.Labels {
		labels[i] = string(l)
	}
	question := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"question": {Type: jsonschema.String, Description: "The question text"},
			"options": {
				Type:        jsonschema.Array,
				Description: "Exactly four answer options, in A-D order",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
			"answer": {
				Type:        jsonschema.String,
				Description: "Label of the correct option",
				Enum:        labels,
			},
		},
		Required:             []string{"question", "options", "answer"},
		AdditionalProperties: false,
	}
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"questions": {
				Type:        jsonschema.Array,
				Description: "Exactly four questions",
				Items:       &question,
			},
		},
		Required:             []string{"questions"},
		AdditionalProperties: false,
	}
}

// compiledSchema compiles Schema once for local validation.
func compiledSchema() (*validator.Schema, error) {
	compileOnce.Do(func() {
		data, err := json.Marshal(Schema())
		if err != nil {
			compileErr = fmt.Errorf("marshal quiz schema: %w", err)
			return
		}
		compiled, err = validator.CompileString(schemaURL, string(data))
		if err != nil {
			compileErr = fmt.Errorf("compile quiz schema: %w", err)
		}
	})
	return compiled, compileErr
}
