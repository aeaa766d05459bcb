package support

import (
	"errors"
	"time"

	"github.com/ariefcatur/go-store-core/internal/enrichment"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

var validNext = map[Status]Status{
	StatusOpen:       StatusInProgress,
	StatusInProgress: StatusResolved,
	StatusResolved:   StatusClosed,
}

func CanTransition(from, to Status) bool {
	next, ok := validNext[from]
	return ok && next == to
}

var (
	ErrNotFound          = errors.New("ticket not found")
	ErrInvalid           = errors.New("invalid ticket")
	ErrInvalidTransition = errors.New("invalid ticket status transition")
)

type Ticket struct {
	ID                    string           `json:"id"`
	CustomerID            string           `json:"customer_id"`
	Subject               string           `json:"subject"`
	Description           string           `json:"description"`
	Priority              Priority         `json:"priority"`
	Status                Status           `json:"status"`
	AISuggestion          *string          `json:"ai_suggestion"`
	EnrichmentState       enrichment.State `json:"enrichment_state"`
	EnrichmentRequestedAt *time.Time       `json:"enrichment_requested_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Content is what the analyzer reads.
func (t Ticket) Content() string {
	return t.Subject + "\n\n" + t.Description
}

func (t Ticket) Enrichment() enrichment.Record {
	rec := enrichment.Record{
		ID:          t.ID,
		Kind:        enrichment.KindTicket,
		State:       t.EnrichmentState,
		RequestedAt: t.EnrichmentRequestedAt,
		Content:     t.Content(),
	}
	if t.AISuggestion != nil {
		rec.Result = &enrichment.Result{Suggestion: *t.AISuggestion}
	}
	return rec
}

type NewTicket struct {
	CustomerID  string   `json:"customer_id"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}
