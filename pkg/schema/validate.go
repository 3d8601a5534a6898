// pkg/schema/validate.go
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError describes one failed check against the round schema.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BuildJSONSchema derives a JSON schema document for the answers of a round
// application form. Project and recipient questions are handled by the
// builder itself and are excluded from answer validation; the recipient
// value is checked separately as a payout address.
func BuildJSONSchema(m *RoundApplicationMetadata) map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}

	for _, q := range m.ApplicationSchema.Questions {
		if q.Type == QuestionProject || q.Type == QuestionRecipient {
			continue
		}

		var prop map[string]interface{}
		switch q.Type {
		case QuestionNumber:
			prop = map[string]interface{}{"type": "number"}
		case QuestionCheckbox:
			prop = map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			}
		case QuestionEmail:
			prop = map[string]interface{}{
				"type":    "string",
				"pattern": `^[^@\s]+@[^@\s]+\.[^@\s]+$`,
			}
		case QuestionAddress:
			prop = map[string]interface{}{
				"type":    "string",
				"pattern": "^0x[0-9a-fA-F]{40}$",
			}
		default:
			prop = map[string]interface{}{"type": "string"}
		}

		if len(q.Options) > 0 && q.Type != QuestionCheckbox {
			prop["enum"] = toInterfaceSlice(q.Options)
		}

		properties[q.Key()] = prop
		if q.Required {
			required = append(required, q.Key())
		}
	}

	doc := map[string]interface{}{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// ValidateAnswers checks raw form answers against the round schema. A nil
// slice means the answers are acceptable to hand to the builder.
func ValidateAnswers(m *RoundApplicationMetadata, answers Answers) ([]ValidationError, error) {
	schemaDoc := BuildJSONSchema(m)

	schemaLoader := gojsonschema.NewGoLoader(schemaDoc)
	documentLoader := gojsonschema.NewGoLoader(stripReserved(answers))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   resultErr.Field(),
			Code:    strings.ToUpper(resultErr.Type()),
			Message: resultErr.Description(),
		})
	}
	return errs, nil
}

// stripReserved drops non-question keys so they don't trip the validator.
func stripReserved(answers Answers) map[string]interface{} {
	out := make(map[string]interface{}, len(answers))
	for k, v := range answers {
		if k == IsSafeKey {
			continue
		}
		out[k] = v
	}
	return out
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// ParseRoundApplicationMetadata decodes schema JSON fetched from the
// metadata store.
func ParseRoundApplicationMetadata(data []byte) (*RoundApplicationMetadata, error) {
	var m RoundApplicationMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse round application metadata: %w", err)
	}
	return &m, nil
}
