package profiles

import (
	"fmt"
	"strings"
)

// LoadError reports a profiles document that could not be used.
type LoadError struct {
	Source  string
	Message string
	Details []string
	Cause   error
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("profiles %s: %s", e.Source, e.Message))
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	for _, d := range e.Details {
		sb.WriteString("\n  - ")
		sb.WriteString(d)
	}
	return sb.String()
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
