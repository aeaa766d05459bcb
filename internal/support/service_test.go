package support

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore map[string]Ticket

func (m memStore) Create(_ context.Context, t *Ticket) error {
	m[t.ID] = *t
	return nil
}

func (m memStore) Get(_ context.Context, id string) (Ticket, error) {
	t, ok := m[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (m memStore) UpdateStatus(_ context.Context, id string, from, to Status) error {
	t, ok := m[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != from {
		return ErrInvalidTransition
	}
	t.Status = to
	m[id] = t
	return nil
}

func TestOpenDefaultsAndValidates(t *testing.T) {
	svc := &Service{Store: memStore{}}

	tk, err := svc.Open(context.Background(), NewTicket{CustomerID: "c1", Subject: " Printer ", Description: "on fire"})
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, tk.Priority)
	assert.Equal(t, StatusOpen, tk.Status)
	assert.Equal(t, enrichment.StateNone, tk.EnrichmentState)
	assert.Equal(t, "Printer", tk.Subject)

	for _, in := range []NewTicket{
		{Subject: "x", Description: "y"},
		{CustomerID: "c1", Description: "y"},
		{CustomerID: "c1", Subject: "x"},
		{CustomerID: "c1", Subject: "x", Description: "y", Priority: "WHENEVER"},
	} {
		_, err := svc.Open(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("REOPENED").Valid())
	assert.False(t, Status("").Valid())
}

func TestTicketLifecycle(t *testing.T) {
	store := memStore{}
	svc := &Service{Store: store}
	tk, err := svc.Open(context.Background(), NewTicket{CustomerID: "c1", Subject: "x", Description: "y"})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), tk.ID, StatusResolved)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, to := range []Status{StatusInProgress, StatusResolved, StatusClosed} {
		tk, err = svc.ChangeStatus(context.Background(), tk.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, tk.Status)
	}
	_, err = svc.ChangeStatus(context.Background(), tk.ID, StatusOpen)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.ChangeStatus(context.Background(), "nope", StatusInProgress)
	assert.ErrorIs(t, err, ErrNotFound)
}
