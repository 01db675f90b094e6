// internal/common/validation/report.go
package validation

import (
	"fmt"
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

// reportSchema is the JSON schema every raw hazard report must satisfy before
// it becomes an Alert.
const reportSchema = `{
	"type": "object",
	"properties": {
		"hazardType": {
			"type": "string",
			"minLength": 1,
			"maxLength": 64
		},
		"region": {
			"type": "string",
			"minLength": 1,
			"maxLength": 64
		},
		"severity": {
			"type": "string",
			"enum": ["low", "moderate", "high", "extreme"]
		},
		"reportedAt": {
			"type": "string",
			"format": "date-time"
		},
		"source": {
			"type": "string",
			"maxLength": 128
		}
	},
	"required": ["hazardType", "region", "severity", "reportedAt"],
	"additionalProperties": false
}`

var compiledReportSchema = gojsonschema.NewStringLoader(reportSchema)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateReport validates a raw hazard report payload against the report schema.
func ValidateReport(payload map[string]interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(compiledReportSchema, gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// ValidateEmail validates email format.
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format.
func ValidatePhone(phone string) bool {
	phonePattern := regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	return phonePattern.MatchString(phone)
}
