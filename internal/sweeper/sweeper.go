// internal/sweeper/sweeper.go
//
// Periodic housekeeping for the session registry.
// Responsibilities:
//   - Run Registry.Sweep on a fixed interval via gocron.
//   - Expire abandoned waiting rooms and release finished sessions from memory.
//
// Notes:
//   - Runs are singleton: a slow sweep delays the next one instead of overlapping it.

package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/arena/internal/registry"
)

// Target is the part of the registry a sweep needs.
type Target interface {
	Sweep(ctx context.Context, waitingTTL, completedTTL time.Duration) registry.SweepResult
}

// Config controls how often and how aggressively sessions are swept.
type Config struct {
	Interval     time.Duration // time between runs
	WaitingTTL   time.Duration // idle waiting rooms older than this are discarded
	CompletedTTL time.Duration // finished sessions older than this leave memory
}

// Sweeper owns the scheduler running the sweep job.
type Sweeper struct {
	sched  gocron.Scheduler
	cancel context.CancelFunc
}

// Start schedules the sweep job against t and starts the scheduler.
func Start(t Target, cfg Config) (*Sweeper, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", cfg.Interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() {
			res := t.Sweep(ctx, cfg.WaitingTTL, cfg.CompletedTTL)
			log.Debug().Int("expired", res.Expired).Int("released", res.Released).Msg("sweep tick")
		}),
		gocron.WithName("session-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	sched.Start()
	log.Info().Dur("interval", cfg.Interval).Dur("waitingTTL", cfg.WaitingTTL).
		Dur("completedTTL", cfg.CompletedTTL).Msg("sweeper started")
	return &Sweeper{sched: sched, cancel: cancel}, nil
}

// Stop cancels any running sweep and waits for the scheduler to exit.
func (s *Sweeper) Stop() error {
	s.cancel()
	return s.sched.Shutdown()
}
