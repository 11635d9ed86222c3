package extract

import "fmt"

// ExtractionError reports that no parseable JSON object could be located in a reply.
// Raw always holds the reply exactly as received.
type ExtractionError struct {
	Raw     string
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction error: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
