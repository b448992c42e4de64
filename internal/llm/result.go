package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/utb-library/affiliation-cli/internal/model"
)

// ValidationError means the provider answered but the payload failed the
// schema. The record goes to the error state without burning retries.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "llm: invalid payload: " + e.Reason }

// IsValidationError reports whether err is a payload validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// rawResult mirrors the expected payload with pointer fields so missing
// keys are distinguishable from zero values.
type rawResult struct {
	InternalAuthors *[]string `json:"internal_authors"`
	FacultyGuess    *string   `json:"faculty_guess"`
	Confidence      *float64  `json:"confidence"`
	Notes           *string   `json:"notes"`
}

// ParseResult validates raw provider output against the result schema.
// Markdown code fences and surrounding prose are tolerated; everything
// inside must be one strict JSON object.
func ParseResult(raw string) (*model.LLMResult, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, &ValidationError{Reason: "empty response"}
	}

	var parsed rawResult
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&parsed); err != nil {
		return nil, &ValidationError{Reason: "not a JSON object: " + err.Error()}
	}

	if parsed.InternalAuthors == nil {
		return nil, &ValidationError{Reason: "missing internal_authors"}
	}
	if parsed.Confidence == nil {
		return nil, &ValidationError{Reason: "missing confidence"}
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 1 {
		return nil, &ValidationError{Reason: "confidence out of range"}
	}
	if parsed.Notes == nil {
		return nil, &ValidationError{Reason: "missing notes"}
	}

	result := &model.LLMResult{
		InternalAuthors: make([]string, 0, len(*parsed.InternalAuthors)),
		FacultyGuess:    parsed.FacultyGuess,
		Confidence:      *parsed.Confidence,
		Notes:           *parsed.Notes,
	}
	for _, name := range *parsed.InternalAuthors {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &ValidationError{Reason: "empty author name"}
		}
		result.InternalAuthors = append(result.InternalAuthors, name)
	}
	if parsed.FacultyGuess != nil && strings.TrimSpace(*parsed.FacultyGuess) == "" {
		result.FacultyGuess = nil
	}

	return result, nil
}

// cleanJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
