package enrichment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type State string

const (
	StateNone      State = "NO_ENRICHMENT"
	StateRequested State = "ENRICHMENT_REQUESTED"
	StateEnriched  State = "ENRICHED"
)

type Kind string

const (
	KindTicket        Kind = "ticket"
	KindCVApplication Kind = "cv_application"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInFlight      = errors.New("enrichment already in flight")
	ErrStartFailed   = errors.New("analyzer job could not be started")
	ErrInvalidResult = errors.New("invalid enrichment result")
)

// Result carries either a score+narrative pair (applications) or a
// suggestion (tickets).
type Result struct {
	Score      *int   `json:"score,omitempty"`
	Narrative  string `json:"narrative,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Record is the enrichment view of a ticket or application.
type Record struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	State       State      `json:"enrichment_state"`
	RequestedAt *time.Time `json:"enrichment_requested_at,omitempty"`
	Content     string     `json:"-"`
	Result      *Result    `json:"result,omitempty"`
}

// Stale reports a request that has waited longer than timeout for its
// completion; such a record may be requested again.
func (r Record) Stale(now time.Time, timeout time.Duration) bool {
	return r.State == StateRequested && r.RequestedAt != nil && !r.RequestedAt.After(now.Add(-timeout))
}

type Validator func(Result) error

// ValidateScored requires score and narrative together.
func ValidateScored(r Result) error {
	if r.Score == nil || strings.TrimSpace(r.Narrative) == "" {
		return fmt.Errorf("%w: score and narrative are both required", ErrInvalidResult)
	}
	if *r.Score < 0 || *r.Score > 100 {
		return fmt.Errorf("%w: score %d out of range 0..100", ErrInvalidResult, *r.Score)
	}
	return nil
}

func ValidateSuggestion(r Result) error {
	if strings.TrimSpace(r.Suggestion) == "" {
		return fmt.Errorf("%w: suggestion is required", ErrInvalidResult)
	}
	return nil
}
