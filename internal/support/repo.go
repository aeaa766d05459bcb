package support

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

const ticketColumns = `id, customer_id, subject, description, priority, status, ai_suggestion,
	enrichment_state, enrichment_requested_at, created_at, updated_at`

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	var priority, status, state string
	err := row.Scan(&t.ID, &t.CustomerID, &t.Subject, &t.Description, &priority, &status, &t.AISuggestion,
		&state, &t.EnrichmentRequestedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrNotFound
	}
	t.Priority, t.Status, t.EnrichmentState = Priority(priority), Status(status), enrichment.State(state)
	return t, err
}

func (r *Repo) Create(ctx context.Context, t *Ticket) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO tickets(id, customer_id, subject, description, priority, status, enrichment_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		t.ID, t.CustomerID, t.Subject, t.Description, string(t.Priority), string(t.Status), string(t.EnrichmentState), t.CreatedAt)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (Ticket, error) {
	return scanTicket(r.DB.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE tickets SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *Repo) GetEnrichment(ctx context.Context, id string) (enrichment.Record, error) {
	t, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return enrichment.Record{}, enrichment.ErrNotFound
	}
	if err != nil {
		return enrichment.Record{}, err
	}
	return t.Enrichment(), nil
}

func (r *Repo) MarkRequested(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE tickets SET enrichment_state='ENRICHMENT_REQUESTED', enrichment_requested_at=$2, updated_at=now()
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
		UPDATE tickets SET enrichment_state='NO_ENRICHMENT', enrichment_requested_at=NULL, updated_at=now()
		WHERE id=$1 AND enrichment_state='ENRICHMENT_REQUESTED' AND enrichment_requested_at=$2`, id, at)
	return err
}

func (r *Repo) CompleteEnrichment(ctx context.Context, id string, res enrichment.Result) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE tickets SET ai_suggestion=$2, enrichment_state='ENRICHED', updated_at=now()
		WHERE id=$1 AND enrichment_state='ENRICHMENT_REQUESTED'`, id, res.Suggestion)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) ExpireRequested(ctx context.Context, staleBefore time.Time) (int64, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE tickets SET enrichment_state='NO_ENRICHMENT', enrichment_requested_at=NULL, updated_at=now()
		WHERE enrichment_state='ENRICHMENT_REQUESTED' AND enrichment_requested_at <= $1`, staleBefore)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
