package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Task is scheduled work. The context is cancelled when the scheduler stops.
type Task func(ctx context.Context)

// Scheduler runs recurring tasks on cron and one-shot tasks on timers.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	running sync.WaitGroup
	stopped bool
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*time.Timer),
	}
}

// AddRecurringTask runs fn every interval. Runs of the same task never
// overlap; a run still in progress when the next one is due is skipped.
func (s *Scheduler) AddRecurringTask(name string, interval time.Duration, fn Task) error {
	if interval < time.Second {
		return fmt.Errorf("task %s: interval %s is below one second", name, interval)
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.run(name, fn)
	}))
	if _, err := s.cron.AddJob("@every "+interval.String(), job); err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	log.Info().Str("task", name).Dur("interval", interval).Msg("recurring task scheduled")
	return nil
}

// AddOneShotTask runs fn once at the given time, or immediately if it has
// passed. Scheduling a name again replaces the pending run.
func (s *Scheduler) AddOneShotTask(name string, at time.Time, fn Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(time.Until(at), func() {
		s.mu.Lock()
		if s.timers[name] == timer {
			delete(s.timers, name)
		}
		s.mu.Unlock()
		s.run(name, fn)
	})
	s.timers[name] = timer
}

// Pending reports how many one-shot tasks have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) run(name string, fn Task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", name).Interface("panic", r).Msg("scheduled task panicked")
		}
	}()

	start := time.Now()
	fn(s.ctx)
	log.Debug().Str("task", name).Dur("took", time.Since(start)).Msg("scheduled task finished")
}

// Start begins running recurring tasks.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop cancels pending one-shot tasks, stops the cron and waits for running
// tasks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.running.Wait()
	log.Info().Msg("scheduler stopped")
}
