// Package validate provides a type and functions to validate input like
// command line configuration or client-submitted JSON objects.
package validate

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// SprintErrs renders validation problems one per line, sorted by field.
func SprintErrs(problems map[string]string) string {
	var b strings.Builder
	for _, field := range slices.Sorted(maps.Keys(problems)) {
		b.WriteString(field + ": " + problems[field] + "\n")
	}
	return b.String()
}

// Object validates `v` and returns an error if there are validation errors.
// If there is more than one validation error, the function joins the errors,
// sorted by field, using `errors.Join`.
func Object(v Validator) error {
	problems := v.Validate()
	if len(problems) == 0 {
		return nil
	}

	var err error
	for _, field := range slices.Sorted(maps.Keys(problems)) {
		err = errors.Join(err, fmt.Errorf("field %s: %v", field, problems[field]))
	}
	return err
}

type Validator interface {
	Validate() map[string]string
}
