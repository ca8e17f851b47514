package bot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RecurringTask(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.AddRecurringTask("tick", time.Second, func(context.Context) { runs.Add(1) }))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}

func TestScheduler_RejectsSubSecondInterval(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	assert.Error(t, s.AddRecurringTask("fast", 10*time.Millisecond, func(context.Context) {}))
}

func TestScheduler_OneShotTask(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := make(chan struct{})
	s.AddOneShotTask("later", time.Now().Add(20*time.Millisecond), func(context.Context) { close(fired) })
	assert.Equal(t, 1, s.Pending())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot task did not fire")
	}
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_OneShotReplacedAndCancelled(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32

	s.AddOneShotTask("expire", time.Now().Add(time.Hour), func(context.Context) { runs.Add(100) })
	s.AddOneShotTask("expire", time.Now().Add(-time.Second), func(context.Context) { runs.Add(1) })
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.AddOneShotTask("never", time.Now().Add(time.Hour), func(context.Context) { runs.Add(10) })
	s.Stop()
	assert.Zero(t, s.Pending())

	// Stopped schedulers ignore new work.
	s.AddOneShotTask("ignored", time.Now(), func(context.Context) { runs.Add(1000) })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_TaskPanicIsContained(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.AddOneShotTask("boom", time.Now(), func(context.Context) { panic("boom") })
	s.AddOneShotTask("after", time.Now().Add(10*time.Millisecond), func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped running tasks after a panic")
	}
}

func TestScheduler_TimerFiringDuringStopDoesNotRun(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	release := make(chan struct{})
	s.AddOneShotTask("slow", time.Now(), func(context.Context) {
		close(started)
		<-release
	})
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.stopped
	}, time.Second, 5*time.Millisecond)

	// A timer whose callback was already past its Stop check.
	var late atomic.Int32
	s.run("late", func(context.Context) { late.Add(1) })

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Zero(t, late.Load())
}
