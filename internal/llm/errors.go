package llm

import "fmt"

// APICallError reports a model call that produced no usable text. It is raised before
// any reply reaches the extractor.
type APICallError struct {
	Op      string
	Model   string
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	msg := fmt.Sprintf("%s (%s): %s", e.Op, e.Model, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}
