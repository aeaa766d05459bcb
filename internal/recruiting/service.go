package recruiting

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	Create(ctx context.Context, a *Application) error
	Get(ctx context.Context, id string) (Application, error)
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

func (s *Service) Submit(ctx context.Context, in NewApplication) (Application, error) {
	in.CandidateName = strings.TrimSpace(in.CandidateName)
	in.CandidateEmail = strings.TrimSpace(in.CandidateEmail)
	in.Position = strings.TrimSpace(in.Position)
	switch {
	case in.CandidateName == "":
		return Application{}, fmt.Errorf("%w: candidate_name is required", ErrInvalid)
	case in.Position == "":
		return Application{}, fmt.Errorf("%w: position is required", ErrInvalid)
	case strings.TrimSpace(in.ResumeText) == "":
		return Application{}, fmt.Errorf("%w: resume_text is required", ErrInvalid)
	}
	if _, err := mail.ParseAddress(in.CandidateEmail); err != nil {
		return Application{}, fmt.Errorf("%w: candidate_email: %v", ErrInvalid, err)
	}

	now := s.now()
	a := Application{
		ID:              uuid.NewString(),
		CandidateName:   in.CandidateName,
		CandidateEmail:  in.CandidateEmail,
		CandidatePhone:  strings.TrimSpace(in.CandidatePhone),
		Position:        in.Position,
		ResumeText:      in.ResumeText,
		Status:          StatusPending,
		EnrichmentState: enrichment.StateNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Store.Create(ctx, &a); err != nil {
		return Application{}, err
	}
	logging.OrNop(s.Log).Info("application received", zap.String("application_id", a.ID), zap.String("position", a.Position))
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (Application, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) ChangeStatus(ctx context.Context, id string, to Status) (Application, error) {
	a, err := s.Store.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !CanTransition(a.Status, to) {
		return Application{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	if to == StatusReviewed && a.EnrichmentState != enrichment.StateEnriched {
		return Application{}, ErrNotEnriched
	}
	if err := s.Store.UpdateStatus(ctx, id, a.Status, to); err != nil {
		return Application{}, err
	}
	logging.OrNop(s.Log).Info("application status changed",
		zap.String("application_id", id), zap.String("from", string(a.Status)), zap.String("to", string(to)))
	a.Status = to
	a.UpdatedAt = s.now()
	return a, nil
}
