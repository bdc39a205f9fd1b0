package materialize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner triggers Scheduler.RunOnce on a fixed interval. A tick that fires
// while the previous run is still going is skipped.
type Runner struct {
	sched *Scheduler
	log   zerolog.Logger

	mu    sync.Mutex
	c     *cron.Cron
	entry cron.EntryID
	tick  time.Duration
	ctx   context.Context
}

func NewRunner(sched *Scheduler, tick time.Duration, log zerolog.Logger) *Runner {
	if tick <= 0 {
		tick = 5 * time.Minute
	}
	l := log.With().Str("component", "runner").Logger()
	return &Runner{
		sched: sched,
		log:   l,
		tick:  tick,
		c: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cron.PrintfLogger(&l)),
			cron.WithChain(cron.Recover(cron.PrintfLogger(&l)), cron.SkipIfStillRunning(cron.PrintfLogger(&l))),
		),
	}
}

// Start schedules runs until ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	if err := r.scheduleLocked(); err != nil {
		return err
	}
	r.c.Start()
	r.log.Info().Dur("tick", r.tick).Msg("runner started")
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop waits for a run in flight to finish.
func (r *Runner) Stop() {
	<-r.c.Stop().Done()
}

// SetTick reschedules the runner with a new interval.
func (r *Runner) SetTick(tick time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tick <= 0 || tick == r.tick {
		return nil
	}
	r.tick = tick
	if r.ctx == nil {
		return nil
	}
	r.c.Remove(r.entry)
	if err := r.scheduleLocked(); err != nil {
		return err
	}
	r.log.Info().Dur("tick", tick).Msg("runner rescheduled")
	return nil
}

func (r *Runner) scheduleLocked() error {
	ctx := r.ctx
	id, err := r.c.AddFunc(fmt.Sprintf("@every %s", r.tick), func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.sched.RunOnce(ctx); err != nil {
			r.log.Error().Err(err).Msg("materialization run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling materialization: %w", err)
	}
	r.entry = id
	return nil
}
