package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the retention sweeper.
type SweeperConfig struct {
	// Retention is how long a finished job stays readable.
	Retention time.Duration

	// Interval defines how often to prune. If zero, defaults to 10 minutes.
	Interval time.Duration
}

// Sweeper periodically prunes finished jobs older than the retention window.
type Sweeper struct {
	store      *Store
	config     SweeperConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewSweeper creates a Sweeper for store.
func NewSweeper(store *Store, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		store:      store,
		config:     config,
		logger:     logger.With("component", "job_sweeper"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop ends the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.cancelFunc()
	s.wg.Wait()
}

// SweepOnce prunes jobs that finished before now minus the retention window.
func (s *Sweeper) SweepOnce() int {
	removed := s.store.Prune(s.store.now().Add(-s.config.Retention))
	if removed > 0 {
		s.logger.Info("pruned finished jobs",
			"count", removed,
			"remaining", s.store.Len())
	}
	return removed
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}
