package recruiting

import (
	"errors"
	"time"

	"github.com/ariefcatur/go-store-core/internal/enrichment"
)

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusReviewed    Status = "REVIEWED"
	StatusShortlisted Status = "SHORTLISTED"
	StatusRejected    Status = "REJECTED"
	StatusHired       Status = "HIRED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:     {StatusReviewed: true},
	StatusReviewed:    {StatusShortlisted: true, StatusRejected: true, StatusHired: true},
	StatusShortlisted: {StatusHired: true, StatusRejected: true},
	StatusRejected:    {},
	StatusHired:       {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

var (
	ErrNotFound          = errors.New("application not found")
	ErrInvalid           = errors.New("invalid application")
	ErrInvalidTransition = errors.New("invalid application status transition")
	// ErrNotEnriched blocks review until the screening score has arrived.
	ErrNotEnriched = errors.New("application has no screening result yet")
)

type Application struct {
	ID                    string           `json:"id"`
	CandidateName         string           `json:"candidate_name"`
	CandidateEmail        string           `json:"candidate_email"`
	CandidatePhone        string           `json:"candidate_phone,omitempty"`
	Position              string           `json:"position"`
	ResumeText            string           `json:"resume_text"`
	Status                Status           `json:"status"`
	AIScore               *int             `json:"ai_score"`
	AINarrative           *string          `json:"ai_narrative"`
	EnrichmentState       enrichment.State `json:"enrichment_state"`
	EnrichmentRequestedAt *time.Time       `json:"enrichment_requested_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func (a Application) Content() string {
	return "Position: " + a.Position + "\n\n" + a.ResumeText
}

func (a Application) Enrichment() enrichment.Record {
	rec := enrichment.Record{
		ID:          a.ID,
		Kind:        enrichment.KindCVApplication,
		State:       a.EnrichmentState,
		RequestedAt: a.EnrichmentRequestedAt,
		Content:     a.Content(),
	}
	if a.AIScore != nil && a.AINarrative != nil {
		rec.Result = &enrichment.Result{Score: a.AIScore, Narrative: *a.AINarrative}
	}
	return rec
}

type NewApplication struct {
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	CandidatePhone string `json:"candidate_phone"`
	Position       string `json:"position"`
	ResumeText     string `json:"resume_text"`
}
