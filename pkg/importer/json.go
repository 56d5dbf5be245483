package importer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

const gradebookSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["students", "assignments", "grades"],
  "properties": {
    "course_id": {"type": "string", "maxLength": 128},
    "students": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {"id": {"type": "string", "minLength": 1}, "name": {"type": "string"}}
      }
    },
    "assignments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "max_score": {"type": "number"},
          "chapter_id": {"type": "string"}
        }
      }
    },
    "grades": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["student_id", "assignment_id", "score"],
        "properties": {
          "student_id": {"type": "string"},
          "assignment_id": {"type": "string"},
          "score": {"type": "number"},
          "max_score": {"type": "number"}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(gradebookSchema)

// SchemaError lists every violation found in a JSON gradebook.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "gradebook does not match schema: " + strings.Join(e.Violations, "; ")
}

func parseJSON(data []byte) (models.GradebookInput, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return models.GradebookInput{}, fmt.Errorf("decode json gradebook: %w", err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return models.GradebookInput{}, &SchemaError{Violations: violations}
	}

	var in models.GradebookInput
	if err := json.Unmarshal(data, &in); err != nil {
		return models.GradebookInput{}, fmt.Errorf("decode json gradebook: %w", err)
	}
	return in, nil
}
