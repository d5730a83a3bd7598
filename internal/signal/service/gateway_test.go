package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalgateway/internal/signal"
)

// memoryRepo is an in-process stand-in for the remote table.
type memoryRepo struct {
	rows   []signal.Record
	nextID int64
	now    func() time.Time

	insertCalls int
	failInsert  map[int]bool // 1-based call numbers that fail
	emptyInsert bool
	failAll     error

	lastQuery  signal.Query
	lastCutoff time.Time
}

func newMemoryRepo() *memoryRepo {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var tick int
	return &memoryRepo{
		failInsert: map[int]bool{},
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	}
}

func (m *memoryRepo) Insert(_ context.Context, signals ...signal.Signal) ([]signal.Record, error) {
	m.insertCalls++
	if m.failAll != nil {
		return nil, m.failAll
	}
	if m.failInsert[m.insertCalls] {
		return nil, errors.New("duplicate key value violates unique constraint")
	}
	if m.emptyInsert {
		return nil, nil
	}
	var out []signal.Record
	for _, s := range signals {
		m.nextID++
		rec := signal.Record{ID: m.nextID, CreatedAt: m.now(), Signal: s}
		m.rows = append(m.rows, rec)
		out = append(out, rec)
	}
	return out, nil
}

func (m *memoryRepo) Select(_ context.Context, q signal.Query) ([]signal.Record, error) {
	m.lastQuery = q
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []signal.Record
	for _, r := range m.rows {
		if q.Style != nil && (r.Style == nil || *r.Style != *q.Style) {
			continue
		}
		if q.Rating != nil && (r.Rating == nil || *r.Rating != *q.Rating) {
			continue
		}
		if q.MinScore != nil && (r.Score == nil || *r.Score < *q.MinScore) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memoryRepo) DeleteByID(_ context.Context, id int64) ([]signal.Record, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	var removed []signal.Record
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.ID == id {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return removed, nil
}

func (m *memoryRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]signal.Record, error) {
	m.lastCutoff = cutoff
	if m.failAll != nil {
		return nil, m.failAll
	}
	var removed []signal.Record
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.CreatedAt.Before(cutoff) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return removed, nil
}

type recordingNotifier struct {
	got []signal.Record
	err error
}

func (n *recordingNotifier) NotifySignal(_ context.Context, rec signal.Record) error {
	n.got = append(n.got, rec)
	return n.err
}

func sampleSignal() signal.Signal {
	return signal.Signal{
		Symbol:      signal.Ptr("TSLA"),
		Timeframe:   signal.Ptr("1d"),
		Style:       signal.Ptr(signal.StyleDay),
		Rating:      signal.Ptr(signal.RatingStrongBuy),
		Score:       signal.Ptr(285),
		Entry:       signal.Ptr(312.45),
		TP1:         signal.Ptr(321.95),
		TP2:         signal.Ptr(327.97),
		TP3:         signal.Ptr(337.45),
		StopLoss:    signal.Ptr(305.60),
		RR:          signal.Ptr(2.8),
		Resistance:  signal.Ptr(320.50),
		Support:     signal.Ptr(310.20),
		Setup:       signal.Ptr("ORB5, VWAP, FVG"),
		Wave:        signal.Ptr("Wave 3"),
		Confluence:  signal.Ptr(94),
		Description: signal.Ptr("LEGENDARY signal based on 94% confluence. Breakout confirmed with high volume."),
	}
}

func TestPushSignal(t *testing.T) {
	repo := newMemoryRepo()
	n := &recordingNotifier{}
	gw := NewGateway(repo, nil, WithNotifier(n))

	rec, err := gw.PushSignal(context.Background(), sampleSignal())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, int64(1), gw.Pushed())
	require.Len(t, n.got, 1)
	assert.Equal(t, rec.ID, n.got[0].ID)
}

func TestPushSignalRemoteFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failAll = errors.New("dial tcp: connection refused")
	gw := NewGateway(repo, nil)

	_, err := gw.PushSignal(context.Background(), sampleSignal())
	assert.ErrorIs(t, err, ErrRemoteCall)
	assert.Equal(t, int64(0), gw.Pushed())
}

func TestPushSignalEmptyResult(t *testing.T) {
	repo := newMemoryRepo()
	repo.emptyInsert = true
	n := &recordingNotifier{}
	gw := NewGateway(repo, nil, WithNotifier(n))

	_, err := gw.PushSignal(context.Background(), sampleSignal())
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, int64(0), gw.Pushed())
	assert.Empty(t, n.got)
}

func TestPushSignalRejectsUnknownEnum(t *testing.T) {
	repo := newMemoryRepo()
	gw := NewGateway(repo, nil)

	s := sampleSignal()
	s.Rating = signal.Ptr(signal.Rating("moon"))
	_, err := gw.PushSignal(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidSignal)
	assert.Equal(t, 0, repo.insertCalls)
}

func TestPushSignalNotifierFailureIsNotFatal(t *testing.T) {
	gw := NewGateway(newMemoryRepo(), nil, WithNotifier(&recordingNotifier{err: errors.New("webhook 500")}))

	_, err := gw.PushSignal(context.Background(), sampleSignal())
	assert.NoError(t, err)
	assert.Equal(t, int64(1), gw.Pushed())
}

func TestPushSignalAbsentFields(t *testing.T) {
	repo := newMemoryRepo()
	gw := NewGateway(repo, nil)

	rec, err := gw.PushSignal(context.Background(), signal.Signal{Symbol: signal.Ptr("AAPL")})
	require.NoError(t, err)
	assert.Nil(t, rec.Entry)
	assert.Nil(t, rec.Style)
}

func TestPushMultipleContinuesAfterFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failInsert[2] = true
	gw := NewGateway(repo, nil)

	signals := []signal.Signal{sampleSignal(), sampleSignal(), sampleSignal()}
	n, err := gw.PushMultiple(context.Background(), signals)

	assert.Equal(t, 2, n)
	assert.Equal(t, 3, repo.insertCalls)
	assert.Equal(t, int64(2), gw.Pushed())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteCall)
	assert.Contains(t, err.Error(), "signal 1")
}

func TestPushMultipleAllSucceed(t *testing.T) {
	gw := NewGateway(newMemoryRepo(), nil)

	n, err := gw.PushMultiple(context.Background(), []signal.Signal{sampleSignal(), sampleSignal()})
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = gw.PushMultiple(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetLatest(t *testing.T) {
	repo := newMemoryRepo()
	gw := NewGateway(repo, nil)
	for i := 0; i < 5; i++ {
		_, err := gw.PushSignal(context.Background(), sampleSignal())
		require.NoError(t, err)
	}

	recs, err := gw.GetLatest(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, int64(5), recs[0].ID)
	assert.Equal(t, 3, repo.lastQuery.Limit)
	assert.Nil(t, repo.lastQuery.MinScore)

	_, err = gw.GetLatest(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLatestLimit, repo.lastQuery.Limit)
}

// overflowRepo ignores the limit it was given.
type overflowRepo struct{ memoryRepo }

func (o *overflowRepo) Select(ctx context.Context, q signal.Query) ([]signal.Record, error) {
	q.Limit = 0
	return o.memoryRepo.Select(ctx, q)
}

func TestGetLatestNeverExceedsLimit(t *testing.T) {
	repo := &overflowRepo{memoryRepo: *newMemoryRepo()}
	gw := NewGateway(repo, nil)
	for i := 0; i < 4; i++ {
		_, err := gw.PushSignal(context.Background(), sampleSignal())
		require.NoError(t, err)
	}

	recs, err := gw.GetLatest(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestGetLatestRemoteFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failAll = errors.New("timeout")
	gw := NewGateway(repo, nil)

	recs, err := gw.GetLatest(context.Background(), 10)
	assert.ErrorIs(t, err, ErrRemoteCall)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestGetLatestEmptyIsNotError(t *testing.T) {
	gw := NewGateway(newMemoryRepo(), nil)

	recs, err := gw.GetLatest(context.Background(), 10)
	assert.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestGetFilteredPredicate(t *testing.T) {
	repo := newMemoryRepo()
	gw := NewGateway(repo, nil)

	_, err := gw.GetFiltered(context.Background(), Filter{
		Style:    signal.Ptr(signal.StyleDay),
		Rating:   signal.Ptr(signal.RatingStrongBuy),
		MinScore: 250,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.lastQuery.Style)
	require.NotNil(t, repo.lastQuery.Rating)
	require.NotNil(t, repo.lastQuery.MinScore)
	assert.Equal(t, signal.StyleDay, *repo.lastQuery.Style)
	assert.Equal(t, signal.RatingStrongBuy, *repo.lastQuery.Rating)
	assert.Equal(t, 250, *repo.lastQuery.MinScore)
	assert.Equal(t, 0, repo.lastQuery.Limit)

	_, err = gw.GetFiltered(context.Background(), Filter{MinScore: 100})
	require.NoError(t, err)
	assert.Nil(t, repo.lastQuery.Style)
	assert.Nil(t, repo.lastQuery.Rating)
	require.NotNil(t, repo.lastQuery.MinScore)
	assert.Equal(t, 100, *repo.lastQuery.MinScore)
}

func TestGetFilteredMatches(t *testing.T) {
	repo := newMemoryRepo()
	gw := NewGateway(repo, nil)

	low := sampleSignal()
	low.Score = signal.Ptr(120)
	swing := sampleSignal()
	swing.Style = signal.Ptr(signal.StyleSwing)
	_, err := gw.PushMultiple(context.Background(), []signal.Signal{sampleSignal(), low, swing})
	require.NoError(t, err)

	recs, err := gw.GetFiltered(context.Background(), Filter{
		Style:    signal.Ptr(signal.StyleDay),
		Rating:   signal.Ptr(signal.RatingStrongBuy),
		MinScore: 250,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].ID)
}

func TestGetFilteredRemoteFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failAll = errors.New("boom")
	gw := NewGateway(repo, nil)

	recs, err := gw.GetFiltered(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrRemoteCall)
	assert.Empty(t, recs)
}

func TestDeleteByIDMissingRowStillSucceeds(t *testing.T) {
	gw := NewGateway(newMemoryRepo(), nil)

	assert.NoError(t, gw.DeleteByID(context.Background(), 12345))
}

func TestDeleteByIDRemoteFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failAll = errors.New("boom")
	gw := NewGateway(repo, nil)

	assert.ErrorIs(t, gw.DeleteByID(context.Background(), 1), ErrRemoteCall)
}

func TestClearOlderThan(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-7 * 24 * time.Hour)

	repo := newMemoryRepo()
	repo.rows = []signal.Record{
		{ID: 1, CreatedAt: cutoff.Add(-time.Second)},
		{ID: 2, CreatedAt: cutoff},
		{ID: 3, CreatedAt: cutoff.Add(time.Second)},
		{ID: 4, CreatedAt: cutoff.Add(-72 * time.Hour)},
	}
	gw := NewGateway(repo, nil, WithClock(func() time.Time { return now }))

	removed, err := gw.ClearOlderThan(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, cutoff, repo.lastCutoff)

	var left []int64
	for _, r := range repo.rows {
		left = append(left, r.ID)
	}
	assert.ElementsMatch(t, []int64{2, 3}, left)
}

func TestClearOlderThanDefaultsToSevenDays(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	gw := NewGateway(repo, nil, WithClock(func() time.Time { return now }))

	removed, err := gw.ClearOlderThan(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, now.AddDate(0, 0, -7), repo.lastCutoff)
}

func TestClearOlderThanRemoteFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failAll = errors.New("boom")
	gw := NewGateway(repo, nil)

	removed, err := gw.ClearOlderThan(context.Background(), 3)
	assert.ErrorIs(t, err, ErrRemoteCall)
	assert.Equal(t, 0, removed)
}

func TestPushThenReadLatest(t *testing.T) {
	repo := newMemoryRepo()
	gw := NewGateway(repo, nil)

	other := sampleSignal()
	other.Symbol = signal.Ptr("NVDA")
	_, err := gw.PushSignal(context.Background(), other)
	require.NoError(t, err)
	_, err = gw.PushSignal(context.Background(), sampleSignal())
	require.NoError(t, err)
	assert.Equal(t, int64(2), gw.Pushed())

	recs, err := gw.GetLatest(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "TSLA", *recs[0].Symbol)
	assert.InDelta(t, 312.45, *recs[0].Entry, 1e-9)
}
