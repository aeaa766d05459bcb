package support

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id string) (Ticket, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

type Service struct {
	Store Store
	Log   *zap.Logger
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) Open(ctx context.Context, in NewTicket) (Ticket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.CustomerID == "":
		return Ticket{}, fmt.Errorf("%w: customer_id is required", ErrInvalid)
	case in.Subject == "":
		return Ticket{}, fmt.Errorf("%w: subject is required", ErrInvalid)
	case in.Description == "":
		return Ticket{}, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return Ticket{}, fmt.Errorf("%w: unknown priority %q", ErrInvalid, in.Priority)
	}

	now := s.now()
	t := Ticket{
		ID:              uuid.NewString(),
		CustomerID:      in.CustomerID,
		Subject:         in.Subject,
		Description:     in.Description,
		Priority:        in.Priority,
		Status:          StatusOpen,
		EnrichmentState: enrichment.StateNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Store.Create(ctx, &t); err != nil {
		return Ticket{}, err
	}
	logging.OrNop(s.Log).Info("ticket opened", zap.String("ticket_id", t.ID), zap.String("priority", string(t.Priority)))
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (Ticket, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) ChangeStatus(ctx context.Context, id string, to Status) (Ticket, error) {
	t, err := s.Store.Get(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if !CanTransition(t.Status, to) {
		return Ticket{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	if err := s.Store.UpdateStatus(ctx, id, t.Status, to); err != nil {
		return Ticket{}, err
	}
	logging.OrNop(s.Log).Info("ticket status changed",
		zap.String("ticket_id", id), zap.String("from", string(t.Status)), zap.String("to", string(to)))
	t.Status = to
	t.UpdatedAt = s.now()
	return t, nil
}
