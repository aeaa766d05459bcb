package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

func newMemStore(recs ...Record) *memStore {
	s := &memStore{recs: map[string]Record{}}
	for _, r := range recs {
		s.recs[r.ID] = r
	}
	return s
}

func (s *memStore) GetEnrichment(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *memStore) MarkRequested(_ context.Context, id string, at, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok {
		return false, nil
	}
	if r.State == StateNone || (r.State == StateRequested && !r.RequestedAt.After(staleBefore)) {
		r.State = StateRequested
		r.RequestedAt = &at
		s.recs[id] = r
		return true, nil
	}
	return false, nil
}

func (s *memStore) RevertRequested(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recs[id]
	if r.State == StateRequested && r.RequestedAt.Equal(at) {
		r.State = StateNone
		r.RequestedAt = nil
		s.recs[id] = r
	}
	return nil
}

func (s *memStore) CompleteEnrichment(_ context.Context, id string, res Result) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok || r.State != StateRequested {
		return false, nil
	}
	r.State = StateEnriched
	r.Result = &res
	s.recs[id] = r
	return true, nil
}

func (s *memStore) ExpireRequested(_ context.Context, staleBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.recs {
		if r.State == StateRequested && !r.RequestedAt.After(staleBefore) {
			r.State = StateNone
			r.RequestedAt = nil
			s.recs[id] = r
			n++
		}
	}
	return n, nil
}

type fakeAnalyzer struct {
	store *memStore
	err   error
	jobs  []Job
	// state observed for the record at submit time
	seen []State
}

func (a *fakeAnalyzer) Submit(ctx context.Context, job Job) error {
	rec, _ := a.store.GetEnrichment(ctx, job.RecordID)
	a.seen = append(a.seen, rec.State)
	a.jobs = append(a.jobs, job)
	return a.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func intp(i int) *int { return &i }

func newService(recs ...Record) (*Service, *memStore, *fakeAnalyzer, *clock) {
	store := newMemStore(recs...)
	an := &fakeAnalyzer{store: store}
	c := &clock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	return &Service{
		Kind:        KindCVApplication,
		Store:       store,
		Analyzer:    an,
		Validate:    ValidateScored,
		Timeout:     10 * time.Minute,
		CallbackURL: func(id string) string { return "http://api/callbacks/applications/" + id },
		Now:         c.now,
	}, store, an, c
}

func TestRequestMarksBeforeSubmitting(t *testing.T) {
	svc, store, an, c := newService(Record{ID: "cv1", State: StateNone, Content: "resume text"})

	rec, err := svc.RequestEnrichment(context.Background(), "cv1")
	require.NoError(t, err)
	assert.Equal(t, StateRequested, rec.State)
	require.NotNil(t, rec.RequestedAt)
	assert.True(t, rec.RequestedAt.Equal(c.t))

	require.Len(t, an.jobs, 1)
	assert.Equal(t, []State{StateRequested}, an.seen)
	assert.Equal(t, "resume text", an.jobs[0].Content)
	assert.Equal(t, "http://api/callbacks/applications/cv1", an.jobs[0].CallbackURL)

	stored, _ := store.GetEnrichment(context.Background(), "cv1")
	assert.Equal(t, StateRequested, stored.State)
}

func TestRequestSubmitFailureReverts(t *testing.T) {
	svc, store, an, _ := newService(Record{ID: "cv1", State: StateNone})
	an.err = errors.New("connection refused")

	_, err := svc.RequestEnrichment(context.Background(), "cv1")
	require.ErrorIs(t, err, ErrStartFailed)

	stored, _ := store.GetEnrichment(context.Background(), "cv1")
	assert.Equal(t, StateNone, stored.State)
	assert.Nil(t, stored.RequestedAt)
}

func TestRequestInFlightRejected(t *testing.T) {
	svc, _, an, c := newService(Record{ID: "cv1", State: StateNone})

	_, err := svc.RequestEnrichment(context.Background(), "cv1")
	require.NoError(t, err)

	c.advance(5 * time.Minute)
	rec, err := svc.RequestEnrichment(context.Background(), "cv1")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.False(t, rec.Stale(c.t, svc.Timeout))
	assert.Len(t, an.jobs, 1)
}

func TestRequestRetryAllowedAfterTimeout(t *testing.T) {
	svc, _, an, c := newService(Record{ID: "cv1", State: StateNone})

	_, err := svc.RequestEnrichment(context.Background(), "cv1")
	require.NoError(t, err)

	c.advance(11 * time.Minute)
	rec, err := svc.Get(context.Background(), "cv1")
	require.NoError(t, err)
	assert.True(t, rec.Stale(c.t, svc.Timeout))

	rec, err = svc.RequestEnrichment(context.Background(), "cv1")
	require.NoError(t, err)
	assert.True(t, rec.RequestedAt.Equal(c.t))
	assert.Len(t, an.jobs, 2)
}

func TestRequestEnrichedShortCircuits(t *testing.T) {
	res := Result{Score: intp(70), Narrative: "solid"}
	svc, _, an, _ := newService(Record{ID: "cv1", State: StateEnriched, Result: &res})

	rec, err := svc.RequestEnrichment(context.Background(), "cv1")
	require.NoError(t, err)
	assert.Equal(t, StateEnriched, rec.State)
	assert.Equal(t, 70, *rec.Result.Score)
	assert.Empty(t, an.jobs)
}

func TestRequestUnknownRecord(t *testing.T) {
	svc, _, _, _ := newService()
	_, err := svc.RequestEnrichment(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReceiveAppliesOnceAndIgnoresDuplicates(t *testing.T) {
	svc, _, _, _ := newService(Record{ID: "cv1", State: StateNone})
	_, err := svc.RequestEnrichment(context.Background(), "cv1")
	require.NoError(t, err)

	rec, applied, err := svc.ReceiveEnrichment(context.Background(), "cv1", Result{Score: intp(82), Narrative: "strong Go background"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StateEnriched, rec.State)
	assert.Equal(t, 82, *rec.Result.Score)

	rec, applied, err = svc.ReceiveEnrichment(context.Background(), "cv1", Result{Score: intp(10), Narrative: "different"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 82, *rec.Result.Score)
	assert.Equal(t, "strong Go background", rec.Result.Narrative)
}

func TestReceiveWithoutRequestDiscarded(t *testing.T) {
	svc, _, _, _ := newService(Record{ID: "cv1", State: StateNone})

	rec, applied, err := svc.ReceiveEnrichment(context.Background(), "cv1", Result{Score: intp(50), Narrative: "x"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, StateNone, rec.State)
	assert.Nil(t, rec.Result)
}

func TestReceiveUnknownRecord(t *testing.T) {
	svc, _, _, _ := newService()
	_, applied, err := svc.ReceiveEnrichment(context.Background(), "nope", Result{Score: intp(50), Narrative: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, applied)
}

func TestReceiveRejectsHalfResult(t *testing.T) {
	svc, store, _, _ := newService(Record{ID: "cv1", State: StateNone})
	_, err := svc.RequestEnrichment(context.Background(), "cv1")
	require.NoError(t, err)

	for _, res := range []Result{
		{Score: intp(50)},
		{Narrative: "no score"},
		{Score: intp(101), Narrative: "too high"},
		{Score: intp(-1), Narrative: "too low"},
	} {
		_, _, err := svc.ReceiveEnrichment(context.Background(), "cv1", res)
		assert.ErrorIs(t, err, ErrInvalidResult)
	}
	stored, _ := store.GetEnrichment(context.Background(), "cv1")
	assert.Equal(t, StateRequested, stored.State)
}

func TestExpireStale(t *testing.T) {
	svc, store, _, c := newService(Record{ID: "a", State: StateNone}, Record{ID: "b", State: StateNone})
	_, err := svc.RequestEnrichment(context.Background(), "a")
	require.NoError(t, err)
	c.advance(8 * time.Minute)
	_, err = svc.RequestEnrichment(context.Background(), "b")
	require.NoError(t, err)

	c.advance(3 * time.Minute)
	n, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, _ := store.GetEnrichment(context.Background(), "a")
	b, _ := store.GetEnrichment(context.Background(), "b")
	assert.Equal(t, StateNone, a.State)
	assert.Equal(t, StateRequested, b.State)

	// completion yang telat untuk "a" dibuang
	_, applied, err := svc.ReceiveEnrichment(context.Background(), "a", Result{Score: intp(1), Narrative: "late"})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestValidateSuggestion(t *testing.T) {
	assert.NoError(t, ValidateSuggestion(Result{Suggestion: "Reset the router"}))
	assert.ErrorIs(t, ValidateSuggestion(Result{Suggestion: "  "}), ErrInvalidResult)
}

func TestServiceTruncatesToMicroseconds(t *testing.T) {
	svc := &Service{Now: func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 123456789, time.UTC) }}
	assert.Equal(t, 123456000, svc.now().Nanosecond())
}
