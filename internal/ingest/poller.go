package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bryan-buckman/sftu/internal/model"
)

// runTimeout bounds a single FetchAll run.
const runTimeout = 10 * time.Minute

// PollerStore is what the poller reads its schedule from and prunes.
type PollerStore interface {
	GetPollingInterval(ctx context.Context) (int, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Poller runs the fetcher on a cron schedule and prunes expired sessions.
type Poller struct {
	fetcher *Fetcher
	store   PollerStore
	logger  *zap.Logger

	mu       sync.Mutex // guards cron, entry, interval
	cron     *cron.Cron
	entry    cron.EntryID
	interval int

	runMu sync.Mutex // one fetch at a time
}

// NewPoller creates a background poller.
func NewPoller(fetcher *Fetcher, store PollerStore, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("poller")
	return &Poller{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(zap.NewStdLog(logger))),
		)),
	}
}

// Start schedules fetching at the stored polling interval, runs one fetch
// immediately and starts the scheduler.
func (p *Poller) Start(ctx context.Context) error {
	interval, err := p.store.GetPollingInterval(ctx)
	if err != nil {
		p.logger.Warn("read polling interval, using minimum", zap.Error(err))
		interval = model.MinPollingIntervalMinutes
	}
	if err := p.Reschedule(interval); err != nil {
		return err
	}
	p.mu.Lock()
	_, err = p.cron.AddFunc("@hourly", p.pruneSessions)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("schedule session pruning: %w", err)
	}

	p.cron.Start()
	go p.run()
	return nil
}

// Reschedule replaces the fetch job with one firing every minutes minutes.
// Values below the minimum are raised to it.
func (p *Poller) Reschedule(minutes int) error {
	if minutes < model.MinPollingIntervalMinutes {
		minutes = model.MinPollingIntervalMinutes
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entry != 0 && p.interval == minutes {
		return nil
	}
	id, err := p.cron.AddFunc(fmt.Sprintf("@every %dm", minutes), p.run)
	if err != nil {
		return fmt.Errorf("schedule fetch: %w", err)
	}
	if p.entry != 0 {
		p.cron.Remove(p.entry)
	}
	p.entry = id
	p.interval = minutes
	p.logger.Info("fetch scheduled", zap.Int("interval_minutes", minutes))
	return nil
}

// Interval returns the current schedule in minutes.
func (p *Poller) Interval() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// RunOnce fetches all sources now. Concurrent calls wait for each other.
func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.fetcher.FetchAll(ctx)
}

func (p *Poller) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()
	sum, err := p.RunOnce(ctx)
	if err != nil {
		p.logger.Error("fetch run failed", zap.Error(err))
		return
	}
	p.logger.Info("fetch run complete",
		zap.Int("sources", sum.Sources),
		zap.Int("failed", sum.Failed),
		zap.Int("new", sum.New),
		zap.Int("updated", sum.Updated),
		zap.Duration("took", time.Since(start)),
	)
}

func (p *Poller) pruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := p.store.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		p.logger.Warn("prune sessions", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("pruned expired sessions", zap.Int64("count", n))
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.runMu.Lock()
	defer p.runMu.Unlock()
}
