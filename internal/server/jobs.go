package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/gameserver"
	"github.com/cory-johannsen/brainduel/internal/observability"
)

// HealthChecker reports whether the database answers within timeout.
type HealthChecker interface {
	Health(ctx context.Context, timeout time.Duration) error
}

// StatsSource exposes the live game state published by the server loop.
type StatsSource interface {
	Snapshot() gameserver.Stats
}

// JobsConfig configures the maintenance scheduler.
type JobsConfig struct {
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	StatsInterval  time.Duration
}

// Jobs runs the periodic maintenance tasks beside the game loop: a database
// health probe and a live-state log line. It implements Service.
type Jobs struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewJobs schedules the health and stats jobs on clock.
//
// Precondition: db, stats and logger must be non-nil; intervals must be > 0.
// Postcondition: Returns Jobs whose scheduler is created but not started.
func NewJobs(cfg JobsConfig, clock clockwork.Clock, db HealthChecker, stats StatsSource, metrics *observability.Metrics, logger *zap.Logger) (*Jobs, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(cfg.HealthInterval),
		gocron.NewTask(func() {
			checkHealth(db, cfg.HealthTimeout, metrics, logger)
		}),
		gocron.WithName("db-health"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling health job: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(cfg.StatsInterval),
		gocron.NewTask(func() {
			logStats(stats.Snapshot(), logger)
		}),
		gocron.WithName("live-stats"),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling stats job: %w", err)
	}

	return &Jobs{scheduler: s, logger: logger, stop: make(chan struct{})}, nil
}

func checkHealth(db HealthChecker, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) {
	start := time.Now()
	if err := db.Health(context.Background(), timeout); err != nil {
		metrics.SetStorageHealthy(false)
		logger.Warn("database health check failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}
	metrics.SetStorageHealthy(true)
	logger.Debug("database healthy", zap.Duration("elapsed", time.Since(start)))
}

func logStats(st gameserver.Stats, logger *zap.Logger) {
	logger.Info("live state",
		zap.Int("sessions", st.Sessions),
		zap.Int("matches", st.Matches),
		zap.Bool("casual_waiting", st.CasualWaiting),
		zap.Bool("competitive_waiting", st.CompetitiveWaiting),
	)
}

// Start runs the scheduler and blocks until Stop.
func (j *Jobs) Start() error {
	select {
	case <-j.stop:
		return nil
	default:
	}
	j.scheduler.Start()
	j.logger.Info("maintenance jobs started", zap.Int("jobs", len(j.scheduler.Jobs())))
	<-j.stop
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (j *Jobs) Stop() {
	j.stopOnce.Do(func() {
		close(j.stop)
		if err := j.scheduler.Shutdown(); err != nil {
			j.logger.Warn("scheduler shutdown", zap.Error(err))
		}
	})
}
