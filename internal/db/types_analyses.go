package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Analysis status constants
const (
	StatusScored           = "scored"
	StatusClassified       = "classified"
	StatusExtractionFailed = "extraction_failed"
	StatusValidationFailed = "validation_failed"
	StatusModelFailed      = "model_failed"
)

// Analysis is one recorded model run and its outcome.
type Analysis struct {
	ID          uuid.UUID       `json:"id"`
	Profile     string          `json:"profile"`
	Model       string          `json:"model"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	Violations  json.RawMessage `json:"violations,omitempty"`
	RawResponse string          `json:"raw_response,omitempty"`
	Report      string          `json:"report,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Succeeded reports whether the analysis produced a usable result.
func (a *Analysis) Succeeded() bool {
	return a.Status == StatusScored || a.Status == StatusClassified
}

// ListAnalysesOptions contains filters for listing analyses
type ListAnalysesOptions struct {
	Profile string // Filter by profile name
	Status  string // Filter by status
	Limit   int    // Pagination limit
	Offset  int    // Pagination offset
}

// Pagination bounds for ListAnalyses
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)
