package pbcore

import "strings"

// Violation is one failed validation rule.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + " " + v.Message
}

// ValidationError carries every violation found on a record.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "pbcore: invalid instantiation: " + strings.Join(parts, "; ")
}

// Validate returns all violations on inst. An empty result means inst may be persisted.
func Validate(inst *Instantiation) []Violation {
	var violations []Violation
	if strings.TrimSpace(inst.FormatLocation) == "" {
		violations = append(violations, Violation{Field: "formatLocation", Message: "can't be blank"})
	}
	if len(inst.FormatIDs) < 1 {
		violations = append(violations, Violation{Field: ElementFormatID, Message: "is too short (minimum is 1)"})
	}
	return violations
}

// Check returns a *ValidationError if inst has violations, nil otherwise.
func (i *Instantiation) Check() error {
	if v := Validate(i); len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}
