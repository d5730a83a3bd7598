package retention

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cleaner removes signals older than a number of days.
type Cleaner interface {
	ClearOlderThan(ctx context.Context, days int) (int, error)
}

// Runner periodically clears old signals on a cron schedule.
type Runner struct {
	cron    *cron.Cron
	cleaner Cleaner
	days    int
	logger  *zap.Logger
	baseCtx context.Context
}

func New(cleaner Cleaner, days int, logger *zap.Logger, baseCtx context.Context) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		cleaner: cleaner,
		days:    days,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Schedule registers the cleanup job. spec accepts standard 5-field cron
// expressions and descriptors such as "@every 1h".
func (r *Runner) Schedule(spec string) error {
	_, err := r.cron.AddFunc(spec, r.RunOnce)
	return err
}

// RunOnce performs a single cleanup pass.
func (r *Runner) RunOnce() {
	removed, err := r.cleaner.ClearOlderThan(r.baseCtx, r.days)
	if err != nil {
		r.logger.Warn("retention pass failed", zap.Error(err))
		return
	}
	r.logger.Info("retention pass done", zap.Int("removed", removed), zap.Int("days", r.days))
}

func (r *Runner) Start() {
	r.logger.Info("retention cron started")
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("retention cron stopped")
}
