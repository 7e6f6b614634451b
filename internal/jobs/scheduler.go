package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 10 * time.Minute

type schedule struct {
	name      string
	interval  time.Duration
	atStartup bool
	run       func(ctx context.Context) error
}

// Scheduler runs the Runner's jobs on fixed intervals until stopped.
type Scheduler struct {
	runner    *Runner
	schedules []schedule

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler for every job whose dependencies are configured.
// Model validation and the benchmark also run once at startup.
func NewScheduler(r *Runner) *Scheduler {
	s := &Scheduler{runner: r}
	d := r.deps
	if d.Catalog != nil {
		s.schedules = append(s.schedules, schedule{name: JobRefreshModels, interval: r.cfg.ModelRefreshInterval, run: r.RefreshModels})
	}
	if d.Projects != nil {
		s.schedules = append(s.schedules, schedule{name: JobRefreshProjectCache, interval: r.cfg.ProjectRefreshInterval, run: r.RefreshProjectCache})
	}
	if d.Providers != nil && d.ProviderModels != nil {
		s.schedules = append(s.schedules, schedule{name: JobValidateModels, interval: r.cfg.ValidationInterval, atStartup: true,
			run: func(ctx context.Context) error {
				_, err := r.ValidateModels(ctx)
				return err
			}})
	}
	if d.Providers != nil && d.Scores != nil {
		s.schedules = append(s.schedules, schedule{name: JobRunBenchmark, interval: r.cfg.BenchmarkInterval, atStartup: true,
			run: func(ctx context.Context) error {
				_, err := r.RunBenchmark(ctx)
				return err
			}})
	}
	if d.Scores != nil && d.BenchmarkStore != nil {
		s.schedules = append(s.schedules, schedule{name: JobRefreshBenchmarkScores, interval: r.cfg.ScoreRefreshInterval, run: r.RefreshBenchmarkScores})
	}
	return s
}

// Start launches one goroutine per scheduled job. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for _, sc := range s.schedules {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, sc)
		}()
	}
	slog.Info("job scheduler started", "jobs", len(s.schedules))
}

// Stop cancels running jobs and waits for the loops to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	s.wg.Wait()
	slog.Info("job scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, sc schedule) {
	if sc.atStartup {
		s.runOnce(ctx, sc)
	}

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, sc)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, sc schedule) {
	runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	if err := sc.run(runCtx); err != nil {
		slog.Warn("scheduled job failed", "job", sc.name, "error", err)
		return
	}
	slog.Debug("scheduled job finished", "job", sc.name, "duration", time.Since(start))
}
