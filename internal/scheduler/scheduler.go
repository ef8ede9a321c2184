// Package scheduler runs the poll, diff, persist and notify cycle over the watchlist.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/surugaya-watcher/internal/logging"
	"github.com/JakeFAU/surugaya-watcher/internal/metrics"
	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// ErrCycleInProgress is returned when a cycle is requested while another one runs.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Config controls the watch loop.
type Config struct {
	Topics   []watch.Topic
	Interval time.Duration
	// RunOnStart runs one cycle over already-initialized topics right after startup.
	RunOnStart bool
}

// TopicInfo pairs a watched topic with its storage key.
type TopicInfo struct {
	Topic watch.Topic `json:"topic"`
	Key   string      `json:"key"`
}

// Scheduler owns the watchlist and serializes cycles over it.
type Scheduler struct {
	cfg      Config
	fetcher  watch.Fetcher
	store    watch.StateStore
	notifier watch.Notifier
	clock    watch.Clock
	ids      watch.IDGenerator
	logger   *zap.Logger

	running   atomic.Bool
	ready     atomic.Bool
	triggered sync.WaitGroup

	mu   sync.RWMutex
	last *watch.CycleReport
}

// New constructs a Scheduler.
func New(
	cfg Config,
	fetcher watch.Fetcher,
	store watch.StateStore,
	notifier watch.Notifier,
	clock watch.Clock,
	ids watch.IDGenerator,
	logger *zap.Logger,
) (*Scheduler, error) {
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if fetcher == nil || store == nil || notifier == nil || clock == nil || ids == nil {
		return nil, fmt.Errorf("fetcher, store, notifier, clock and ids are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Topics = append([]watch.Topic(nil), cfg.Topics...)
	return &Scheduler{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		clock:    clock,
		ids:      ids,
		logger:   logger.Named("scheduler"),
	}, nil
}

// Topics lists the watchlist with each topic's storage key.
func (s *Scheduler) Topics() []TopicInfo {
	out := make([]TopicInfo, 0, len(s.cfg.Topics))
	for _, t := range s.cfg.Topics {
		out = append(out, TopicInfo{Topic: t, Key: s.store.PathFor(t)})
	}
	return out
}

// Ready reports whether startup baselining has finished.
func (s *Scheduler) Ready() bool {
	return s.ready.Load()
}

// LastReport returns the most recently finished cycle, if any.
func (s *Scheduler) LastReport() (watch.CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return watch.CycleReport{}, false
	}
	return *s.last, true
}

// Bootstrap baselines every topic without persisted state and returns the topics that
// already had state. Baselines never notify. A failed baseline is logged; the topic is
// baselined by a later cycle instead.
func (s *Scheduler) Bootstrap(ctx context.Context) []watch.Topic {
	defer s.ready.Store(true)

	var stale []watch.Topic
	for _, topic := range s.cfg.Topics {
		if ctx.Err() != nil {
			break
		}
		logger := s.logger.With(zap.Stringer("topic", topic), zap.String("key", s.store.PathFor(topic)))
		_, err := s.store.Load(ctx, topic)
		switch {
		case err == nil:
			stale = append(stale, topic)
			continue
		case !errors.Is(err, watch.ErrStateNotFound):
			// Unreadable state is retried by the first cycle rather than overwritten here.
			logger.Error("load state failed", zap.Error(err))
			stale = append(stale, topic)
			continue
		}
		count, err := s.baseline(ctx, topic)
		if err != nil {
			logger.Error("baseline failed", zap.Error(err))
			continue
		}
		logger.Info("stored initial state", zap.Int("products", count))
	}
	return stale
}

func (s *Scheduler) baseline(ctx context.Context, topic watch.Topic) (int, error) {
	current, err := s.fetcher.Fetch(ctx, topic)
	if err != nil {
		return 0, err
	}
	if err := s.store.Save(ctx, topic, current); err != nil {
		return 0, err
	}
	return len(current), nil
}

// RunCycle runs one pass over topics, sequentially. Per-topic failures are recorded in the
// report and never abort the pass. It returns ErrCycleInProgress without doing anything when
// another cycle is running, and the context error when the pass was cut short.
func (s *Scheduler) RunCycle(ctx context.Context, topics []watch.Topic) (watch.CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return watch.CycleReport{}, ErrCycleInProgress
	}
	defer s.running.Store(false)
	return s.cycle(ctx, topics)
}

// Trigger starts a full cycle in the background. It returns once the cycle holds the guard,
// or ErrCycleInProgress when another cycle is running.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	s.triggered.Add(1)
	go func() {
		defer s.triggered.Done()
		defer s.running.Store(false)
		if _, err := s.cycle(ctx, s.cfg.Topics); err != nil {
			s.logger.Warn("triggered cycle did not complete", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every cycle started by Trigger has returned.
func (s *Scheduler) Wait() {
	s.triggered.Wait()
}

func (s *Scheduler) cycle(ctx context.Context, topics []watch.Topic) (watch.CycleReport, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return watch.CycleReport{}, fmt.Errorf("cycle id: %w", err)
	}
	report := watch.CycleReport{ID: id, Started: s.clock.Now()}
	logger := s.logger.With(zap.String("cycle_id", id))
	logger.Info("cycle started", zap.Int("topics", len(topics)))

	for _, topic := range topics {
		if ctx.Err() != nil {
			break
		}
		res := s.runTopic(ctx, topic)
		metrics.ObserveTopicRun(string(res.Outcome), res.Added)
		s.logResult(logger, res)
		report.Results = append(report.Results, res)
	}
	report.Finished = s.clock.Now()

	status := report.Status()
	metrics.ObserveCycle(string(status), report.Finished.Sub(report.Started))
	logger.Info("cycle finished",
		zap.String("status", string(status)),
		zap.Int("topics", len(report.Results)),
		zap.Int("failed", len(report.Failed())),
		zap.Int("notified", report.Notified()),
		zap.Duration("duration", report.Finished.Sub(report.Started)),
	)

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("cycle interrupted: %w", err)
	}
	return report, nil
}

// RunAll runs one cycle over the full watchlist.
func (s *Scheduler) RunAll(ctx context.Context) (watch.CycleReport, error) {
	return s.RunCycle(ctx, s.cfg.Topics)
}

func (s *Scheduler) runTopic(ctx context.Context, topic watch.Topic) watch.TopicResult {
	res := watch.TopicResult{Topic: topic, Key: s.store.PathFor(topic)}

	current, err := s.fetcher.Fetch(ctx, topic)
	if err != nil {
		return res.WithErr(err)
	}

	previous, err := s.store.Load(ctx, topic)
	if errors.Is(err, watch.ErrStateNotFound) {
		if err := s.store.Save(ctx, topic, current); err != nil {
			return res.WithErr(err)
		}
		res.Outcome = watch.OutcomeBaselined
		return res
	}
	if err != nil {
		return res.WithErr(err)
	}

	added := watch.Diff(previous, current)
	res.Added = len(added)
	if len(added) == 0 {
		res.Outcome = watch.OutcomeUnchanged
		return res
	}

	// State is saved before delivery. A failed delivery is never resent; a failed save skips
	// delivery so the products are detected again next cycle.
	if err := s.store.Save(ctx, topic, current); err != nil {
		return res.WithErr(err)
	}
	if err := s.notifier.Notify(ctx, added); err != nil {
		var derr *watch.DeliveryError
		if errors.As(err, &derr) {
			res.Notified = derr.Delivered
		}
		return res.WithErr(err)
	}
	res.Notified = len(added)
	res.Outcome = watch.OutcomeNotified
	return res
}

func (s *Scheduler) logResult(logger *zap.Logger, res watch.TopicResult) {
	fields := []zap.Field{
		zap.Stringer("topic", res.Topic),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("added", res.Added),
	}
	if res.Outcome == watch.OutcomeFailed {
		logger.Warn("topic failed", append(fields, zap.Int("notified", res.Notified), zap.Error(res.Err()))...)
		return
	}
	logger.Info("topic done", fields...)
}

// Run baselines the watchlist, optionally runs the first cycle over already-initialized
// topics, then runs a full cycle every interval until ctx is canceled. It returns once the
// scheduled and triggered cycles in flight have finished.
func (s *Scheduler) Run(ctx context.Context) error {
	stale := s.Bootstrap(ctx)

	cl := logging.CronLogger(s.logger)
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := c.AddFunc(spec, func() { s.runScheduled(ctx, s.cfg.Topics) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("topics", len(s.cfg.Topics)),
		zap.Int("stale", len(stale)),
	)

	if s.cfg.RunOnStart && len(stale) > 0 && ctx.Err() == nil {
		s.runScheduled(ctx, stale)
	}

	<-ctx.Done()
	<-c.Stop().Done()
	s.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context, topics []watch.Topic) {
	report, err := s.RunCycle(ctx, topics)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Info("cycle skipped: previous cycle still running")
	case err != nil && ctx.Err() != nil:
		s.logger.Info("cycle interrupted by shutdown", zap.String("cycle_id", report.ID))
	case err != nil:
		s.logger.Error("cycle failed to start", zap.Error(err))
	}
}
