package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FUNCTIONAL DISCOVERY: validator caches struct metadata, so one instance is
// shared for the life of the process.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a payload against its struct tags.
// The returned error wraps ErrInvalidPayload and names each failing field.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, formatValidationError(err))
	}
	return nil
}

// ValidateCandidates checks a candidate list supplied by a caller.
func ValidateCandidates(candidates []Candidate) error {
	seen := make(map[string]struct{}, len(candidates))
	for i := range candidates {
		id := candidates[i].ID
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: candidate %d: %w", ErrInvalidPayload, i, ErrEmptyCandidateID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q: %w", ErrInvalidPayload, id, ErrDuplicateCandidateID)
		}
		seen[id] = struct{}{}
		if err := Validate(&candidates[i]); err != nil {
			return err
		}
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_without":
			parts = append(parts, field+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "url":
			parts = append(parts, field+" must be a valid URL")
		case "gte", "lte":
			parts = append(parts, fmt.Sprintf("%s is out of range (%s %s)", field, fe.Tag(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
