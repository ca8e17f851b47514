package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CollectsErrorsPerIndex(t *testing.T) {
	d := New(15, 10)
	boom := errors.New("boom")

	errs := d.Run(context.Background(), "test", 20, func(_ context.Context, i int) error {
		if i%4 == 0 {
			return boom
		}
		return nil
	})
	require.Len(t, errs, 20)
	for i, err := range errs {
		if i%4 == 0 {
			assert.ErrorIs(t, err, boom)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	d := New(15, 10)
	errs := d.Run(context.Background(), "test", 3, func(_ context.Context, i int) error {
		if i == 1 {
			panic("bad target")
		}
		return nil
	})
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])
}

func TestRun_BatchesAreSequential(t *testing.T) {
	d := New(15, 10)

	var (
		mu       sync.Mutex
		finished int
		violated bool
	)
	d.Run(context.Background(), "test", 40, func(_ context.Context, i int) error {
		batch := i / 15
		mu.Lock()
		if finished < batch*15 {
			violated = true
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		finished++
		mu.Unlock()
		return nil
	})
	assert.False(t, violated, "a batch started before the previous one finished")
	assert.Equal(t, 40, finished)
}

func TestRun_GlobalLimitAcrossRuns(t *testing.T) {
	d := New(15, 10)

	var inFlight, peak atomic.Int32
	work := func(context.Context, int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	var wg sync.WaitGroup
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Run(context.Background(), "test", 30, work)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(10))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestRun_CancelledContext(t *testing.T) {
	d := New(15, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs := d.Run(ctx, "test", 2, func(context.Context, int) error { return nil })
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestRun_Empty(t *testing.T) {
	assert.Empty(t, New(15, 10).Run(context.Background(), "test", 0, nil))
}
