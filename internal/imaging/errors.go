package imaging

import "fmt"

// Reason classifies a rejected upload.
type Reason string

const (
	ReasonEmpty       Reason = "empty"
	ReasonTooLarge    Reason = "too_large"
	ReasonUnsupported Reason = "unsupported_format"
	ReasonUnreadable  Reason = "unreadable"
)

// ImageError reports an upload that cannot be analysed.
type ImageError struct {
	Name   string
	Reason Reason
	Detail string
	Cause  error
}

func (e *ImageError) Error() string {
	msg := fmt.Sprintf("image %q rejected: %s", e.Name, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *ImageError) Unwrap() error {
	return e.Cause
}
