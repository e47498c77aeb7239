package schema

import (
	"fmt"
	"strings"
)

// FieldError is a single validation failure attributed to one input field.
// Message text is part of the API contract; clients display it verbatim.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors aggregates validation failures. Multi-rule fields (password)
// report every violated rule at once rather than stopping at the first.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// Messages returns the messages reported for the given field, in rule order.
func (e FieldErrors) Messages(field string) []string {
	var out []string
	for _, fe := range e {
		if fe.Field == field {
			out = append(out, fe.Message)
		}
	}
	return out
}

func (e FieldErrors) add(field, message string) FieldErrors {
	return append(e, FieldError{Field: field, Message: message})
}
