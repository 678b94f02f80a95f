package booking_controller

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrEventTypeNotFound = errors.New("event type not found")
	ErrInvalidOutcome    = errors.New("outcome must be approve or reject")
	ErrNotDecidable      = errors.New("only pending or active bookings can be decided")
	ErrDecisionFailed    = errors.New("decision could not be persisted")
	ErrNotCaretaker      = errors.New("caretaker is not assigned to this facility")
)

// ValidationError lists the rejected input fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid booking: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
