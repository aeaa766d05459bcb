package recruiting

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/ariefcatur/go-store-core/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

var _ enrichment.Store = (*Repo)(nil)

const applicationColumns = `id, candidate_name, candidate_email, candidate_phone, position, resume_text, status,
	ai_score, ai_narrative, enrichment_state, enrichment_requested_at, created_at, updated_at`

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	var status, state string
	err := row.Scan(&a.ID, &a.CandidateName, &a.CandidateEmail, &a.CandidatePhone, &a.Position, &a.ResumeText, &status,
		&a.AIScore, &a.AINarrative, &state, &a.EnrichmentRequestedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	a.Status, a.EnrichmentState = Status(status), enrichment.State(state)
	return a, err
}

func (r *Repo) Create(ctx context.Context, a *Application) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cv_applications(id, candidate_name, candidate_email, candidate_phone, position, resume_text,
			status, enrichment_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		a.ID, a.CandidateName, a.CandidateEmail, a.CandidatePhone, a.Position, a.ResumeText,
		string(a.Status), string(a.EnrichmentState), a.CreatedAt)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (Application, error) {
	return scanApplication(r.DB.QueryRow(ctx, `SELECT `+applicationColumns+` FROM cv_applications WHERE id=$1`, id))
}

// UpdateStatus is a compare-and-set. Moving to REVIEWED also requires the
// row to be ENRICHED, re-checked here so a concurrent expiry cannot slip by.
func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	sql := `UPDATE cv_applications SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`
	if to == StatusReviewed {
		sql += ` AND enrichment_state='ENRICHED'`
	}
	ct, err := r.DB.Exec(ctx, sql, id, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	a, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == from && to == StatusReviewed {
		return ErrNotEnriched
	}
	return ErrInvalidTransition
}

func (r *Repo) GetEnrichment(ctx context.Context, id string) (enrichment.Record, error) {
	a, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return enrichment.Record{}, enrichment.ErrNotFound
	}
	if err != nil {
		return enrichment.Record{}, err
	}
	return a.Enrichment(), nil
}

func (r *Repo) MarkRequested(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE cv_applications SET enrichment_state='ENRICHMENT_REQUESTED', enrichment_requested_at=$2, updated_at=now()
		WHERE id=$1 AND (enrichment_state='NO_ENRICHMENT'
			OR (enrichment_state='ENRICHMENT_REQUESTED' AND enrichment_requested_at <= $3))`,
		id, at, staleBefore)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) RevertRequested(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE cv_applications SET enrichment_state='NO_ENRICHMENT', enrichment_requested_at=NULL, updated_at=now()
		WHERE id=$1 AND enrichment_state='ENRICHMENT_REQUESTED' AND enrichment_requested_at=$2`, id, at)
	return err
}

// CompleteEnrichment writes score and narrative in the same statement that
// flips the state; the table CHECKs reject one without the other.
func (r *Repo) CompleteEnrichment(ctx context.Context, id string, res enrichment.Result) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE cv_applications SET ai_score=$2, ai_narrative=$3, enrichment_state='ENRICHED', updated_at=now()
		WHERE id=$1 AND enrichment_state='ENRICHMENT_REQUESTED'`, id, res.Score, res.Narrative)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) ExpireRequested(ctx context.Context, staleBefore time.Time) (int64, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE cv_applications SET enrichment_state='NO_ENRICHMENT', enrichment_requested_at=NULL, updated_at=now()
		WHERE enrichment_state='ENRICHMENT_REQUESTED' AND enrichment_requested_at <= $1`, staleBefore)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
