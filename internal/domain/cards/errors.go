package cards

import (
	"errors"
	"strings"
)

var ErrEmployeeNotImported = errors.New("employee has not been imported")

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "invalid card request: " + strings.Join(parts, ", ")
}
