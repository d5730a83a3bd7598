package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"signalgateway/internal/metrics"
	"signalgateway/internal/signal"
)

const (
	DefaultLatestLimit   = 50
	DefaultRetentionDays = 7
)

var (
	ErrInvalidSignal = signal.ErrInvalid
	ErrRemoteCall    = errors.New("remote store call failed")
	ErrEmptyResult   = errors.New("remote store returned no rows")
)

// SignalRepository is the remote store the gateway forwards to.
type SignalRepository interface {
	Insert(ctx context.Context, signals ...signal.Signal) ([]signal.Record, error)
	Select(ctx context.Context, q signal.Query) ([]signal.Record, error)
	DeleteByID(ctx context.Context, id int64) ([]signal.Record, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]signal.Record, error)
}

// Notifier is told about every signal that reached the store.
type Notifier interface {
	NotifySignal(ctx context.Context, rec signal.Record) error
}

// Filter narrows GetFiltered. Nil Style/Rating apply no predicate;
// MinScore is always applied.
type Filter struct {
	Style    *signal.Style
	Rating   *signal.Rating
	MinScore int
}

type Option func(*Gateway)

func WithNotifier(n Notifier) Option {
	return func(g *Gateway) { g.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// Gateway mediates between signal producers and the remote store. Every
// operation is a single round trip; failures are logged and returned, never
// retried.
type Gateway struct {
	repo     SignalRepository
	logger   *zap.Logger
	notifier Notifier
	now      func() time.Time

	pushed atomic.Int64
}

func NewGateway(repo SignalRepository, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Pushed is the number of successful pushes since the gateway was built.
func (g *Gateway) Pushed() int64 {
	return g.pushed.Load()
}

// PushSignal inserts one signal and returns the stored row.
func (g *Gateway) PushSignal(ctx context.Context, s signal.Signal) (signal.Record, error) {
	if err := s.Validate(); err != nil {
		metrics.SignalsPushedTotal.WithLabelValues("invalid").Inc()
		g.logger.Warn("signal rejected", zap.String("symbol", strOrEmpty(s.Symbol)), zap.Error(err))
		return signal.Record{}, err
	}

	recs, err := g.repo.Insert(ctx, s)
	if err != nil {
		metrics.SignalsPushedTotal.WithLabelValues("error").Inc()
		g.logger.Error("push signal failed", zap.String("symbol", strOrEmpty(s.Symbol)), zap.Error(err))
		return signal.Record{}, fmt.Errorf("push signal: %w: %w", ErrRemoteCall, err)
	}
	if len(recs) == 0 {
		metrics.SignalsPushedTotal.WithLabelValues("empty").Inc()
		g.logger.Error("push signal returned no rows", zap.String("symbol", strOrEmpty(s.Symbol)))
		return signal.Record{}, fmt.Errorf("push signal: %w", ErrEmptyResult)
	}

	g.pushed.Add(1)
	metrics.SignalsPushedTotal.WithLabelValues("ok").Inc()
	rec := recs[0]
	g.logger.Info("signal pushed",
		zap.Int64("id", rec.ID),
		zap.String("symbol", strOrEmpty(s.Symbol)),
		zap.Float64p("entry", s.Entry),
		zap.Intp("score", s.Score),
	)

	if g.notifier != nil {
		if err := g.notifier.NotifySignal(ctx, rec); err != nil {
			g.logger.Warn("signal notification failed", zap.Int64("id", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}

// PushMultiple pushes signals one by one in order. A failed signal does not
// stop the ones after it. It returns the number pushed and the joined errors
// of the failed ones.
func (g *Gateway) PushMultiple(ctx context.Context, signals []signal.Signal) (int, error) {
	var (
		pushed int
		errs   []error
	)
	for i, s := range signals {
		if _, err := g.PushSignal(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("signal %d: %w", i, err))
			continue
		}
		pushed++
	}

	g.logger.Info(fmt.Sprintf("pushed %d/%d signals", pushed, len(signals)))
	return pushed, errors.Join(errs...)
}

// GetLatest returns up to limit signals, newest first. A non-positive limit
// means DefaultLatestLimit.
func (g *Gateway) GetLatest(ctx context.Context, limit int) ([]signal.Record, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}

	recs, err := g.repo.Select(ctx, signal.Query{Limit: limit})
	if err != nil {
		g.logger.Error("fetch latest signals failed", zap.Int("limit", limit), zap.Error(err))
		return []signal.Record{}, fmt.Errorf("get latest: %w: %w", ErrRemoteCall, err)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return nonNil(recs), nil
}

// GetFiltered returns signals matching f, newest first.
func (g *Gateway) GetFiltered(ctx context.Context, f Filter) ([]signal.Record, error) {
	q := signal.Query{Style: f.Style, Rating: f.Rating, MinScore: &f.MinScore}

	recs, err := g.repo.Select(ctx, q)
	if err != nil {
		g.logger.Error("filter signals failed", zap.Int("min_score", f.MinScore), zap.Error(err))
		return []signal.Record{}, fmt.Errorf("get filtered: %w: %w", ErrRemoteCall, err)
	}
	return nonNil(recs), nil
}

// DeleteByID removes one signal. It does not check that a row existed, so a
// missing id is still a success.
func (g *Gateway) DeleteByID(ctx context.Context, id int64) error {
	if _, err := g.repo.DeleteByID(ctx, id); err != nil {
		g.logger.Error("delete signal failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("delete signal %d: %w: %w", id, ErrRemoteCall, err)
	}
	g.logger.Info("signal deleted", zap.Int64("id", id))
	return nil
}

// ClearOlderThan removes signals created strictly before now minus days and
// returns how many were removed. A non-positive days means DefaultRetentionDays.
func (g *Gateway) ClearOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := g.now().Add(-time.Duration(days) * 24 * time.Hour)

	recs, err := g.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		g.logger.Error("clear old signals failed", zap.Int("days", days), zap.Error(err))
		return 0, fmt.Errorf("clear older than %d days: %w: %w", days, ErrRemoteCall, err)
	}

	metrics.SignalsRemovedTotal.Add(float64(len(recs)))
	g.logger.Info("cleared old signals", zap.Int("days", days), zap.Time("cutoff", cutoff), zap.Int("removed", len(recs)))
	return len(recs), nil
}

func nonNil(recs []signal.Record) []signal.Record {
	if recs == nil {
		return []signal.Record{}
	}
	return recs
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
