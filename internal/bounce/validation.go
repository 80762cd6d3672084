package bounce

import (
	"fmt"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid configuration: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "configuration errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// ValidateSetup checks a field and a configuration together. Besides the
// individual checks it rejects fields that cannot contain a single body of
// the collision diameter, since the clamp range would be empty.
func ValidateSetup(field Field, cfg Config) error {
	err := &ValidationError{}

	if ferr := field.Validate(); ferr != nil {
		err.Issues = append(err.Issues, ferr.(*ValidationError).Issues...)
	}
	if cerr := cfg.Validate(); cerr != nil {
		err.Issues = append(err.Issues, cerr.(*ValidationError).Issues...)
	}

	if !err.HasIssues() {
		if field.Width < cfg.CollisionDiameter {
			err.Add(fmt.Sprintf("field width %v is smaller than collision diameter %v", field.Width, cfg.CollisionDiameter))
		}
		if field.Height < cfg.CollisionDiameter {
			err.Add(fmt.Sprintf("field height %v is smaller than collision diameter %v", field.Height, cfg.CollisionDiameter))
		}
	}

	if err.HasIssues() {
		return err
	}
	return nil
}
